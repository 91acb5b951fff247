package inventory

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Allocation is one line of a reservation receipt
type Allocation struct {
	BatchNumber string          `json:"batch_number"`
	Quantity    decimal.Decimal `json:"quantity"`
}

// AllocationPlan is the result of running the allocation policy
type AllocationPlan struct {
	Allocations []Allocation
	Allocated   decimal.Decimal
	Remaining   decimal.Decimal
}

// IsComplete reports whether the whole requested quantity was covered
func (p AllocationPlan) IsComplete() bool {
	return p.Remaining.IsZero()
}

// CandidateBatches returns the allocatable batches in draw order, without
// modifying the input.
//
// With preferFEFO, two batches that both carry an expiration date are ordered
// by ascending expiration. Every other comparison, including a dated batch
// against an undated one, falls back to ascending creation time. An undated
// batch created earlier can therefore be drawn before a dated batch that
// expires soon.
func CandidateBatches(batches []*Batch, preferFEFO bool) []*Batch {
	candidates := make([]*Batch, 0, len(batches))
	for _, b := range batches {
		if b.IsAllocatable() {
			candidates = append(candidates, b)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return drawsBefore(candidates[i], candidates[j], preferFEFO)
	})
	return candidates
}

func drawsBefore(a, b *Batch, preferFEFO bool) bool {
	if preferFEFO && a.ExpirationDate != nil && b.ExpirationDate != nil &&
		!a.ExpirationDate.Equal(*b.ExpirationDate) {
		return a.ExpirationDate.Before(*b.ExpirationDate)
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// PlanAllocation greedily walks the candidate order drawing
// min(batch available, remaining) from each batch until the request is covered.
// It is a pure function: batches are read, never written.
func PlanAllocation(requested decimal.Decimal, batches []*Batch, preferFEFO bool) AllocationPlan {
	plan := AllocationPlan{
		Allocations: make([]Allocation, 0),
		Allocated:   decimal.Zero,
		Remaining:   requested,
	}

	for _, b := range CandidateBatches(batches, preferFEFO) {
		if !plan.Remaining.GreaterThan(decimal.Zero) {
			break
		}
		take := decimal.Min(b.AvailableQuantity, plan.Remaining)
		plan.Allocations = append(plan.Allocations, Allocation{
			BatchNumber: b.BatchNumber,
			Quantity:    take,
		})
		plan.Allocated = plan.Allocated.Add(take)
		plan.Remaining = plan.Remaining.Sub(take)
	}
	return plan
}
