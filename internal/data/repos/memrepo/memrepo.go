// Package memrepo holds map-backed implementations of the repo interfaces for unit
// tests that exercise aggregates and use cases without a database. Writes are not
// rolled back when a surrounding transaction fails.
package memrepo

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lifeapp/lifecycle-backend/internal/data/repos"
	types "github.com/lifeapp/lifecycle-backend/internal/domain"
	"github.com/lifeapp/lifecycle-backend/internal/platform/dbctx"
)

// Store is shared by every repo it hands out.
type Store struct {
	mu sync.Mutex

	products  map[uuid.UUID]*types.Product
	scans     map[uuid.UUID]*types.ProductScan
	steps     map[uuid.UUID]*types.LifecycleStep
	summaries map[uuid.UUID]*types.LifecycleSummary

	// calls counts repo method invocations by "Repo.Method".
	calls map[string]int
	// fail makes the named "Repo.Method" return the error once.
	fail  map[string]error
}

func New() *Store {
	return &Store{
		products:  map[uuid.UUID]*types.Product{},
		scans:     map[uuid.UUID]*types.ProductScan{},
		steps:     map[uuid.UUID]*types.LifecycleStep{},
		summaries: map[uuid.UUID]*types.LifecycleSummary{},
		calls:     map[string]int{},
		fail:      map[string]error{},
	}
}

// hit records a call and pops an injected failure. Caller holds mu.
func (s *Store) hit(name string) error {
	s.calls[name]++
	if err, ok := s.fail[name]; ok {
		delete(s.fail, name)
		return err
	}
	return nil
}

// FailNext injects a one-shot error for a "Repo.Method".
func (s *Store) FailNext(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[name] = err
}

// CallCount reports how often a repo method ran.
func (s *Store) CallCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

func (s *Store) Products() repos.ProductRepo { return &productRepo{s} }

func (s *Store) Scans() repos.ProductScanRepo { return &scanRepo{s} }

func (s *Store) Steps() repos.LifecycleStepRepo { return &stepRepo{s} }

func (s *Store) Summaries() repos.LifecycleSummaryRepo { return &summaryRepo{s} }

func (s *Store) ProductCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.products)
}

func (s *Store) ScanCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.scans)
}

func (s *Store) SummaryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.summaries)
}

func cloneProduct(p *types.Product) *types.Product {
	cp := *p
	return &cp
}

func cloneStep(st *types.LifecycleStep) *types.LifecycleStep {
	cp := *st
	return &cp
}

func cloneSummary(sm *types.LifecycleSummary) *types.LifecycleSummary {
	cp := *sm
	return &cp
}

type productRepo struct{ s *Store }

func (r *productRepo) Create(_ dbctx.Context, p *types.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("ProductRepo.Create"); err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("nil product")
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if _, ok := r.s.products[p.ID]; ok {
		return gorm.ErrDuplicatedKey
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	r.s.products[p.ID] = cloneProduct(p)
	return nil
}

func (r *productRepo) GetByID(_ dbctx.Context, id uuid.UUID) (*types.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("ProductRepo.GetByID"); err != nil {
		return nil, err
	}
	p, ok := r.s.products[id]
	if !ok {
		return nil, nil
	}
	return cloneProduct(p), nil
}

func (r *productRepo) GetByIDs(_ dbctx.Context, ids []uuid.UUID) ([]*types.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("ProductRepo.GetByIDs"); err != nil {
		return nil, err
	}
	out := make([]*types.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.s.products[id]; ok {
			out = append(out, cloneProduct(p))
		}
	}
	return out, nil
}

func (r *productRepo) LockByID(_ dbctx.Context, id uuid.UUID) (*types.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("ProductRepo.LockByID"); err != nil {
		return nil, err
	}
	p, ok := r.s.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return cloneProduct(p), nil
}

func (r *productRepo) Save(_ dbctx.Context, p *types.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("ProductRepo.Save"); err != nil {
		return err
	}
	if p == nil || p.ID == uuid.Nil {
		return fmt.Errorf("missing product id")
	}
	p.UpdatedAt = time.Now().UTC()
	r.s.products[p.ID] = cloneProduct(p)
	return nil
}

func (r *productRepo) IncrementScanCount(_ dbctx.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("ProductRepo.IncrementScanCount"); err != nil {
		return err
	}
	p, ok := r.s.products[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.ScanCount++
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *productRepo) ListEmbedded(_ dbctx.Context, model string, afterID uuid.UUID, limit int) ([]*types.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("ProductRepo.ListEmbedded"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 500
	}
	var all []*types.Product
	for _, p := range r.s.products {
		if !p.HasEmbeddings() || p.EmbeddingModel != model {
			continue
		}
		if afterID != uuid.Nil && strings.Compare(p.ID.String(), afterID.String()) <= 0 {
			continue
		}
		all = append(all, cloneProduct(p))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID.String() < all[j].ID.String() })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

type scanRepo struct{ s *Store }

func (r *scanRepo) Create(_ dbctx.Context, sc *types.ProductScan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("ProductScanRepo.Create"); err != nil {
		return err
	}
	if sc == nil || sc.ProductID == uuid.Nil {
		return fmt.Errorf("scan missing product id")
	}
	for _, existing := range r.s.scans {
		if existing.ContentHash == sc.ContentHash {
			return gorm.ErrDuplicatedKey
		}
	}
	if sc.ID == uuid.Nil {
		sc.ID = uuid.New()
	}
	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = time.Now().UTC()
	}
	cp := *sc
	r.s.scans[sc.ID] = &cp
	return nil
}

func (r *scanRepo) GetByContentHash(_ dbctx.Context, hash string) (*types.ProductScan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("ProductScanRepo.GetByContentHash"); err != nil {
		return nil, err
	}
	for _, sc := range r.s.scans {
		if sc.ContentHash == hash {
			cp := *sc
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *scanRepo) ListByProduct(_ dbctx.Context, productID uuid.UUID, limit int) ([]*types.ProductScan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("ProductScanRepo.ListByProduct"); err != nil {
		return nil, err
	}
	var out []*types.ProductScan
	for _, sc := range r.s.scans {
		if sc.ProductID == productID {
			cp := *sc
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type stepRepo struct{ s *Store }

func (r *stepRepo) Create(_ dbctx.Context, st *types.LifecycleStep) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("LifecycleStepRepo.Create"); err != nil {
		return err
	}
	if st == nil || st.ProductID == uuid.Nil || st.Seq <= 0 {
		return fmt.Errorf("step missing product_id or seq")
	}
	for _, existing := range r.s.steps {
		if existing.ProductID == st.ProductID && existing.Seq == st.Seq {
			return gorm.ErrDuplicatedKey
		}
	}
	if st.ID == uuid.Nil {
		st.ID = uuid.New()
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now().UTC()
	}
	r.s.steps[st.ID] = cloneStep(st)
	return nil
}

func (r *stepRepo) GetByID(_ dbctx.Context, id uuid.UUID) (*types.LifecycleStep, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("LifecycleStepRepo.GetByID"); err != nil {
		return nil, err
	}
	st, ok := r.s.steps[id]
	if !ok {
		return nil, nil
	}
	return cloneStep(st), nil
}

func (r *stepRepo) LockByID(_ dbctx.Context, id uuid.UUID) (*types.LifecycleStep, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("LifecycleStepRepo.LockByID"); err != nil {
		return nil, err
	}
	st, ok := r.s.steps[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return cloneStep(st), nil
}

func (r *stepRepo) SetVisibility(_ dbctx.Context, id uuid.UUID, visible bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("LifecycleStepRepo.SetVisibility"); err != nil {
		return err
	}
	st, ok := r.s.steps[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	st.IsVisible = visible
	return nil
}

// visible returns the scope's visible steps ordered by seq. Caller holds mu.
func (r *stepRepo) visible(scope repos.Scope) []*types.LifecycleStep {
	var out []*types.LifecycleStep
	for _, st := range r.s.steps {
		if st.ProductID != scope.ProductID || !st.IsVisible {
			continue
		}
		if scope.UserID != nil && *scope.UserID != uuid.Nil {
			if st.UserID == nil || *st.UserID != *scope.UserID {
				continue
			}
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

func (r *stepRepo) CountVisible(_ dbctx.Context, scope repos.Scope) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("LifecycleStepRepo.CountVisible"); err != nil {
		return 0, err
	}
	return len(r.visible(scope)), nil
}

func (r *stepRepo) CountVisibleBefore(_ dbctx.Context, scope repos.Scope, seq int64) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("LifecycleStepRepo.CountVisibleBefore"); err != nil {
		return 0, err
	}
	n := 0
	for _, st := range r.visible(scope) {
		if st.Seq < seq {
			n++
		}
	}
	return n, nil
}

func (r *stepRepo) ListVisibleRange(_ dbctx.Context, scope repos.Scope, start, end int) ([]*types.LifecycleStep, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("LifecycleStepRepo.ListVisibleRange"); err != nil {
		return nil, err
	}
	if start < 1 {
		start = 1
	}
	all := r.visible(scope)
	var out []*types.LifecycleStep
	for i := start - 1; i < end && i < len(all); i++ {
		out = append(out, cloneStep(all[i]))
	}
	return out, nil
}

func (r *stepRepo) ListVisibleAfter(_ dbctx.Context, scope repos.Scope, position int) ([]*types.LifecycleStep, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("LifecycleStepRepo.ListVisibleAfter"); err != nil {
		return nil, err
	}
	if position < 0 {
		position = 0
	}
	all := r.visible(scope)
	var out []*types.LifecycleStep
	for i := position; i < len(all); i++ {
		out = append(out, cloneStep(all[i]))
	}
	return out, nil
}

func (r *stepRepo) ListScopes(_ dbctx.Context, limit int) ([]repos.Scope, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("LifecycleStepRepo.ListScopes"); err != nil {
		return nil, err
	}
	seen := map[string]repos.Scope{}
	for _, st := range r.s.steps {
		if !st.IsVisible {
			continue
		}
		sc := repos.Scope{ProductID: st.ProductID, UserID: st.UserID}
		seen[sc.Key()] = sc
	}
	out := make([]repos.Scope, 0, len(seen))
	for _, sc := range seen {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type summaryRepo struct{ s *Store }

func (r *summaryRepo) Create(_ dbctx.Context, sm *types.LifecycleSummary) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("LifecycleSummaryRepo.Create"); err != nil {
		return false, err
	}
	if sm == nil || sm.ProductID == uuid.Nil {
		return false, fmt.Errorf("summary missing product id")
	}
	if sm.ScopeKey == "" {
		sm.ScopeKey = types.ScopeKey(sm.ProductID, sm.UserID)
	}
	for _, existing := range r.s.summaries {
		if existing.ScopeKey == sm.ScopeKey && existing.StepCountEnd == sm.StepCountEnd {
			return false, nil
		}
	}
	if sm.ID == uuid.Nil {
		sm.ID = uuid.New()
	}
	if sm.CreatedAt.IsZero() {
		sm.CreatedAt = time.Now().UTC()
	}
	r.s.summaries[sm.ID] = cloneSummary(sm)
	return true, nil
}

// byScope returns a scope's summaries ordered by end. Caller holds mu.
func (r *summaryRepo) byScope(scopeKey string) []*types.LifecycleSummary {
	var out []*types.LifecycleSummary
	for _, sm := range r.s.summaries {
		if sm.ScopeKey == scopeKey {
			out = append(out, sm)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StepCountEnd < out[j].StepCountEnd })
	return out
}

func (r *summaryRepo) GetByEnd(_ dbctx.Context, scopeKey string, end int) (*types.LifecycleSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("LifecycleSummaryRepo.GetByEnd"); err != nil {
		return nil, err
	}
	for _, sm := range r.byScope(scopeKey) {
		if sm.StepCountEnd == end {
			return cloneSummary(sm), nil
		}
	}
	return nil, nil
}

func (r *summaryRepo) GetLatest(_ dbctx.Context, scopeKey string) (*types.LifecycleSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("LifecycleSummaryRepo.GetLatest"); err != nil {
		return nil, err
	}
	all := r.byScope(scopeKey)
	if len(all) == 0 {
		return nil, nil
	}
	return cloneSummary(all[len(all)-1]), nil
}

func (r *summaryRepo) GetPrevious(_ dbctx.Context, scopeKey string, start int) (*types.LifecycleSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("LifecycleSummaryRepo.GetPrevious"); err != nil {
		return nil, err
	}
	var prev *types.LifecycleSummary
	for _, sm := range r.byScope(scopeKey) {
		if sm.StepCountEnd < start {
			prev = sm
		}
	}
	if prev == nil {
		return nil, nil
	}
	return cloneSummary(prev), nil
}

func (r *summaryRepo) FindOverlapping(_ dbctx.Context, scopeKey string, start, end int) (*types.LifecycleSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("LifecycleSummaryRepo.FindOverlapping"); err != nil {
		return nil, err
	}
	for _, sm := range r.byScope(scopeKey) {
		if sm.StepCountStart <= end && sm.StepCountEnd >= start {
			return cloneSummary(sm), nil
		}
	}
	return nil, nil
}

func (r *summaryRepo) ListByScope(_ dbctx.Context, scopeKey string) ([]*types.LifecycleSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("LifecycleSummaryRepo.ListByScope"); err != nil {
		return nil, err
	}
	all := r.byScope(scopeKey)
	out := make([]*types.LifecycleSummary, 0, len(all))
	for _, sm := range all {
		out = append(out, cloneSummary(sm))
	}
	return out, nil
}

func (r *summaryRepo) DeleteByScope(_ dbctx.Context, scopeKey string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.hit("LifecycleSummaryRepo.DeleteByScope"); err != nil {
		return 0, err
	}
	var n int64
	for id, sm := range r.s.summaries {
		if sm.ScopeKey == scopeKey {
			delete(r.s.summaries, id)
			n++
		}
	}
	return n, nil
}
