// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"fmt"
	"sync"

	"github.com/btcsuite/bchwallet/unit"
	"github.com/btcsuite/bchwallet/waddrmgr"
	"github.com/btcsuite/bchwallet/wallet/cashtoken"
	"github.com/btcsuite/bchwallet/wallet/txauthor"
	"github.com/btcsuite/bchwallet/wtxmgr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// Account is the bookkeeping state of one HD account: its address
// inventory, its unspent outputs, its transaction history and the spend
// reservations currently held.
//
// The four parts share invariants, so every public method holds the
// account lock for its whole duration. Nothing under the lock blocks on
// I/O other than address derivation.
type Account struct {
	cfg Config

	mu           sync.Mutex
	addrs        *waddrmgr.Inventory
	utxos        *wtxmgr.UtxoStore
	txs          *wtxmgr.TxLog
	reservations map[ReservationID]*Reservation

	// changeHolds maps the encoded change address of every active
	// reservation to the reservation holding it.
	changeHolds map[string]ReservationID
}

// NewAccount creates an empty account and derives the first gap of
// addresses for every usage.
func NewAccount(cfg Config) (*Account, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	addrs, err := waddrmgr.NewInventory(waddrmgr.Config{
		GapLimit:      cfg.GapLimit,
		Deriver:       cfg.Deriver,
		CacheValidity: cfg.CacheValidity,
		Clock:         cfg.Clock,
	})
	if err != nil {
		return nil, err
	}

	for _, usage := range waddrmgr.Usages {
		if _, err := addrs.SelectNext(usage); err != nil {
			addrs.Stop()
			return nil, fmt.Errorf("derive %v addresses: %w", usage,
				err)
		}
	}

	log.Infof("Created account %q with gap limit %d", cfg.Name,
		cfg.GapLimit)

	return &Account{
		cfg:          cfg,
		addrs:        addrs,
		utxos:        wtxmgr.NewUtxoStore(cfg.Clock),
		txs:          wtxmgr.NewTxLog(),
		reservations: make(map[ReservationID]*Reservation),
		changeHolds:  make(map[string]ReservationID),
	}, nil
}

// Name returns the name the account is persisted under.
func (a *Account) Name() string {
	return a.cfg.Name
}

// Stop cancels every entry subscription.
func (a *Account) Stop() {
	a.addrs.Stop()
}

// Subscribe registers for entries generated from now on.
func (a *Account) Subscribe() *waddrmgr.Subscription {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.addrs.Subscribe()
}

// NextAddress returns the first unused entry of the usage.
func (a *Account) NextAddress(usage waddrmgr.Usage) (waddrmgr.Entry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.addrs.SelectNext(usage)
}

// MarkUsed records that the address was seen on chain.
func (a *Account) MarkUsed(addr btcutil.Address) (waddrmgr.Entry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.markObserved(addr)
}

// markObserved marks the address used because of on-chain activity. A
// reservation holding the address as change must then keep it used even if
// it is cancelled.
//
// NOTE: The caller must hold the account lock.
func (a *Account) markObserved(addr btcutil.Address) (waddrmgr.Entry,
	error) {

	entry, err := a.addrs.Mark(addr, true)
	if err != nil {
		return waddrmgr.Entry{}, err
	}

	if id, ok := a.changeHolds[addr.EncodeAddress()]; ok {
		a.reservations[id].PrevChangeUsed = true
	}

	return entry, nil
}

// Entries returns the entries of the usage in derivation order.
func (a *Account) Entries(usage waddrmgr.Usage) []waddrmgr.Entry {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.addrs.Entries(usage)
}

// LookupEntry returns the entry owning the address.
func (a *Account) LookupEntry(addr btcutil.Address) (waddrmgr.Entry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.addrs.Lookup(addr)
}

// UpdateBalanceCache stores a freshly fetched balance of the address.
func (a *Account) UpdateBalanceCache(addr btcutil.Address,
	balance btcutil.Amount) (waddrmgr.Entry, error) {

	a.mu.Lock()
	defer a.mu.Unlock()

	return a.addrs.UpdateCache(addr, balance)
}

// InvalidateBalanceCache drops the cached balance of the address, for
// example after a new transaction touching it was seen.
func (a *Account) InvalidateBalanceCache(addr btcutil.Address) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.addrs.InvalidateCache(addr)
}

// CachedBalance returns the fresh cached balance of the address.
func (a *Account) CachedBalance(addr btcutil.Address) (btcutil.Amount,
	error) {

	a.mu.Lock()
	defer a.mu.Unlock()

	return a.addrs.CachedBalance(addr)
}

// TotalCachedBalance sums the fresh cached balances of every entry.
func (a *Account) TotalCachedBalance() btcutil.Amount {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.addrs.TotalCachedBalance()
}

// AddUtxos records newly observed outputs. Every output must pay to one of
// the account's entries, otherwise nothing is added. The owning entries are
// marked used.
func (a *Account) AddUtxos(utxos ...wtxmgr.Utxo) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	owners := make([]btcutil.Address, 0, len(utxos))
	for i := range utxos {
		entry, err := a.addrs.LookupScript(utxos[i].PkScript)
		if err != nil {
			return fmt.Errorf("%w: %v: %w", ErrUntrackedScript,
				utxos[i].OutPoint, err)
		}

		owners = append(owners, entry.Address)
	}

	a.utxos.Add(utxos...)

	for _, addr := range owners {
		if _, err := a.markObserved(addr); err != nil {
			return err
		}
	}

	log.Debugf("Added %d outputs to account %q", len(utxos), a.cfg.Name)

	return nil
}

// RemoveUtxos forgets outputs that were spent. It returns the number of
// outputs that were known. Removed outputs are no longer part of any
// reservation holding them.
func (a *Account) RemoveUtxos(ops ...wire.OutPoint) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	dropped := a.utxos.Leases(ops...)
	removed := a.utxos.Remove(ops...)
	a.detachLeases(dropped)

	return removed
}

// RefreshUtxos replaces the outputs paying to the address with a freshly
// fetched set. Outputs paying to other addresses are untouched. A
// non-empty set marks the address used. Reserved outputs missing from the
// set are dropped from their reservation.
func (a *Account) RefreshUtxos(addr btcutil.Address,
	utxos []wtxmgr.Utxo) error {

	a.mu.Lock()
	defer a.mu.Unlock()

	entry, err := a.addrs.Lookup(addr)
	if err != nil {
		return err
	}

	dropped, err := a.utxos.Replace(entry.PkScript, utxos)
	if err != nil {
		return err
	}
	a.detachLeases(dropped)

	if len(utxos) == 0 {
		return nil
	}

	_, err = a.markObserved(addr)

	return err
}

// ListUnspent returns the unreserved outputs ordered by outpoint.
func (a *Account) ListUnspent() []wtxmgr.Utxo {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.utxos.Unspent()
}

// Balance is the value of the account's outputs split by reservation.
type Balance struct {
	// Available is the value of the unreserved outputs.
	Available btcutil.Amount

	// Reserved is the value of the outputs held by reservations.
	Reserved btcutil.Amount
}

// Total returns the value of every output.
func (b Balance) Total() btcutil.Amount {
	return b.Available + b.Reserved
}

// Balance returns the value of the known outputs.
func (a *Account) Balance() Balance {
	a.mu.Lock()
	defer a.mu.Unlock()

	available, reserved := a.utxos.Balance()

	return Balance{Available: available, Reserved: reserved}
}

// MergeHistory folds the refreshed history of the address into the
// transaction log. A non-empty history marks the address used.
func (a *Account) MergeHistory(addr btcutil.Address,
	items []wtxmgr.HistoryItem) (wtxmgr.MergeSummary, error) {

	a.mu.Lock()
	defer a.mu.Unlock()

	entry, err := a.addrs.Lookup(addr)
	if err != nil {
		return wtxmgr.MergeSummary{}, err
	}

	summary := a.txs.Merge(wtxmgr.ScriptHash(entry.PkScript), items)

	if len(items) > 0 {
		if _, err := a.markObserved(addr); err != nil {
			return wtxmgr.MergeSummary{}, err
		}
	}

	return summary, nil
}

// History returns every recorded transaction, confirmed ones first.
func (a *Account) History() []wtxmgr.TxRecord {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.txs.Records()
}

// HistoryFor returns the transactions touching the address.
func (a *Account) HistoryFor(addr btcutil.Address) ([]wtxmgr.TxRecord,
	error) {

	a.mu.Lock()
	defer a.mu.Unlock()

	entry, err := a.addrs.Lookup(addr)
	if err != nil {
		return nil, err
	}

	return a.txs.RecordsFor(wtxmgr.ScriptHash(entry.PkScript)), nil
}

// SetVerification records the merkle proof check of a transaction.
func (a *Account) SetVerification(hash chainhash.Hash,
	status wtxmgr.VerificationStatus, proof []byte) error {

	a.mu.Lock()
	defer a.mu.Unlock()

	return a.txs.SetVerification(hash, status, proof)
}

// TokenInventory returns the tokens held by the account, reserved outputs
// included.
func (a *Account) TokenInventory() cashtoken.Inventory {
	a.mu.Lock()
	defer a.mu.Unlock()

	return cashtoken.NewInventory(a.utxos.All())
}

// SelectRequest describes a plain value payment to fund.
type SelectRequest struct {
	// Outputs are the recipient outputs. Their values make up the
	// target.
	Outputs []*wire.TxOut

	// FeeRate is the fee rate the transaction pays.
	FeeRate unit.SatPerKByte

	// Strategy selects the inputs. Largest-first is used when nil.
	Strategy txauthor.SelectionStrategy

	// AllowTokenInputs lets token-bearing outputs fund the payment. The
	// caller then has to carry the tokens over itself.
	AllowTokenInputs bool
}

// CoinSelection is a funded plain value payment.
type CoinSelection struct {
	*txauthor.Selection

	// Change is the entry the change output pays to. It is only peeked:
	// reserve the selection to consume it.
	Change waddrmgr.Entry

	// ChangeOutput is the change output, nil when the selection has no
	// change.
	ChangeOutput *wire.TxOut
}

// OutPoints returns the outpoints of the selected inputs.
func (s *CoinSelection) OutPoints() []wire.OutPoint {
	return outPoints(s.Inputs)
}

// outPoints returns the outpoints of the utxos.
func outPoints(utxos []wtxmgr.Utxo) []wire.OutPoint {
	return fn.Map(utxos, func(u wtxmgr.Utxo) wire.OutPoint {
		return u.OutPoint
	})
}

// strategy returns the strategy to use for a selection, capping
// branch-and-bound at the configured candidate count.
func (a *Account) strategy(
	s txauthor.SelectionStrategy) txauthor.SelectionStrategy {

	if s == nil {
		return txauthor.GreedyLargestFirst{}
	}

	bnb, ok := s.(*txauthor.BranchAndBound)
	if !ok || bnb.MaxCandidates != 0 {
		return s
	}

	capped := *bnb
	capped.MaxCandidates = a.cfg.MaxBnBCandidates

	return &capped
}

// SelectCoins chooses unreserved outputs paying for the recipients and the
// fee. Nothing is reserved: pass the outpoints and the change address to
// ReserveSpend once the transaction is built.
func (a *Account) SelectCoins(req *SelectRequest) (*CoinSelection, error) {
	if len(req.Outputs) == 0 {
		return nil, ErrNoOutputs
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	change, err := a.addrs.SelectNext(waddrmgr.UsageChange)
	if err != nil {
		return nil, err
	}

	var target btcutil.Amount
	for _, out := range req.Outputs {
		target += btcutil.Amount(out.Value)
	}

	changeTemplate := wire.NewTxOut(0, change.PkScript)
	params := &txauthor.SelectionParams{
		Target:  target,
		FeeRate: req.FeeRate,
		DustLimit: a.cfg.DustThreshold.Threshold(
			changeTemplate, req.FeeRate,
		),
		Outputs:      req.Outputs,
		ChangeOutput: changeTemplate,
		Estimator:    a.cfg.FeeEstimator,
	}

	candidates := a.utxos.Unspent()
	if !req.AllowTokenInputs {
		candidates = fn.Filter(candidates, func(u wtxmgr.Utxo) bool {
			return !u.HasToken()
		})
	}

	strategy := a.strategy(req.Strategy)
	sel, err := strategy.Select(candidates, params)
	if err != nil {
		return nil, err
	}

	log.Debugf("Selected %d of %d outputs with %s: target=%v, fee=%v, "+
		"change=%v", len(sel.Inputs), len(candidates), strategy.Name(),
		target, sel.Fee, sel.Change)

	return &CoinSelection{
		Selection:    sel,
		Change:       change,
		ChangeOutput: sel.ChangeTxOut(params),
	}, nil
}

// TokenFunding is a funded token transfer.
type TokenFunding struct {
	*cashtoken.Funding

	// Change is the entry both the token change and the value change pay
	// to. It is only peeked: reserve the funding to consume it.
	Change waddrmgr.Entry
}

// OutPoints returns the outpoints of every input of the funding.
func (f *TokenFunding) OutPoints() []wire.OutPoint {
	return outPoints(f.Inputs())
}

// FundTokenTransfer selects the token inputs and the value inputs of a
// token transfer out of the unreserved outputs. Nothing is reserved.
func (a *Account) FundTokenTransfer(transfer *cashtoken.Transfer,
	feeRate unit.SatPerKByte,
	strategy txauthor.SelectionStrategy) (*TokenFunding, error) {

	a.mu.Lock()
	defer a.mu.Unlock()

	change, err := a.addrs.SelectNext(waddrmgr.UsageChange)
	if err != nil {
		return nil, err
	}

	funding, err := cashtoken.FundTransfer(&cashtoken.FundingRequest{
		Transfer:     transfer,
		Candidates:   a.utxos.Unspent(),
		ChangeScript: change.PkScript,
		FeeRate:      feeRate,
		Estimator:    a.cfg.FeeEstimator,
		Dust:         a.cfg.DustThreshold,
		Strategy:     a.strategy(strategy),
	})
	if err != nil {
		return nil, err
	}

	return &TokenFunding{Funding: funding, Change: change}, nil
}
