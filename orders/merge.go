// Package orders keeps a client-side mirror of the signed-in user's orders,
// fed by an authoritative fetch and a stream of push events.
package orders

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"optimeal/models"
)

var ErrMissingID = errors.New("order payload has no id")

// The functions below never modify their input slices; they return the list
// unchanged (same backing array) when nothing applies.

func indexOf(list []models.Order, id int64) int {
	return slices.IndexFunc(list, func(o models.Order) bool { return o.ID == id })
}

// InsertNew prepends o unless an order with the same id is already present.
func InsertNew(list []models.Order, o models.Order) ([]models.Order, bool) {
	if indexOf(list, o.ID) >= 0 {
		return list, false
	}
	out := make([]models.Order, 0, len(list)+1)
	out = append(out, o)
	return append(out, list...), true
}

// ApplyStatusUpdate overlays the fields present in raw onto the mirrored order
// with the same id. Absent fields keep their value; updatedAt becomes now when
// the update does not carry one. Updates for unknown ids, updates older than
// the mirrored copy and status regressions are ignored.
func ApplyStatusUpdate(list []models.Order, raw json.RawMessage, now time.Time) ([]models.Order, bool, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return list, false, fmt.Errorf("status update: %w", err)
	}
	var head struct {
		ID        *int64             `json:"id"`
		Status    models.OrderStatus `json:"status"`
		UpdatedAt *time.Time         `json:"updatedAt"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return list, false, fmt.Errorf("status update: %w", err)
	}
	if head.ID == nil {
		return list, false, ErrMissingID
	}

	i := indexOf(list, *head.ID)
	if i < 0 {
		return list, false, nil
	}
	current := list[i]
	if head.UpdatedAt != nil && head.UpdatedAt.Before(current.UpdatedAt) {
		return list, false, nil
	}
	if head.Status != "" && !current.Status.CanTransition(head.Status) {
		return list, false, nil
	}

	base, err := json.Marshal(current)
	if err != nil {
		return list, false, err
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return list, false, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	if head.UpdatedAt == nil {
		stamp, _ := json.Marshal(now)
		merged["updatedAt"] = stamp
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return list, false, err
	}
	var next models.Order
	if err := json.Unmarshal(data, &next); err != nil {
		return list, false, fmt.Errorf("status update: %w", err)
	}

	out := slices.Clone(list)
	out[i] = next
	return out, true, nil
}

// Upsert stores o, keeping the mirrored copy when it is strictly newer.
func Upsert(list []models.Order, o models.Order) ([]models.Order, bool) {
	i := indexOf(list, o.ID)
	if i < 0 {
		return Sorted(append(slices.Clone(list), o)), true
	}
	if list[i].UpdatedAt.After(o.UpdatedAt) {
		return list, false
	}
	out := slices.Clone(list)
	out[i] = o
	return out, true
}

// MergeSnapshot folds a full fetch into the mirror. For ids on both sides the
// copy with the newer updatedAt wins; orders only present locally (pushed
// while the fetch was in flight) are kept. The result is most recent first.
func MergeSnapshot(list, fetched []models.Order) []models.Order {
	byID := make(map[int64]models.Order, len(list)+len(fetched))
	for _, o := range list {
		byID[o.ID] = o
	}
	for _, o := range fetched {
		if mine, ok := byID[o.ID]; ok && mine.UpdatedAt.After(o.UpdatedAt) {
			continue
		}
		byID[o.ID] = o
	}
	out := make([]models.Order, 0, len(byID))
	for _, o := range byID {
		out = append(out, o)
	}
	return Sorted(out)
}

// Sorted orders by creation time, newest first, then by id descending.
func Sorted(list []models.Order) []models.Order {
	slices.SortStableFunc(list, func(a, b models.Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return list
}

// Active filters orders that are pending, preparing or ready.
func Active(list []models.Order) []models.Order {
	return filter(list, models.OrderStatus.IsActive)
}

// Historical filters delivered and cancelled orders.
func Historical(list []models.Order) []models.Order {
	return filter(list, models.OrderStatus.IsHistorical)
}

func filter(list []models.Order, keep func(models.OrderStatus) bool) []models.Order {
	out := make([]models.Order, 0, len(list))
	for _, o := range list {
		if keep(o.Status) {
			out = append(out, o)
		}
	}
	return out
}
