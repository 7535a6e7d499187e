package domain

import (
	"sort"
	"time"
)

type MoveDirection string

const (
	MoveUp   MoveDirection = "up"
	MoveDown MoveDirection = "down"
)

// QueuePositionUpdate assigns a new position to a queue entry.
type QueuePositionUpdate struct {
	ID            string `json:"id"`
	QueuePosition int    `json:"queue_position"`
}

// NextQueuePosition returns the position a new entry takes at the tail.
func NextQueuePosition(entries []InvitationQueueEntry) int {
	maxPosition := 0
	for _, entry := range entries {
		if entry.QueuePosition > maxPosition {
			maxPosition = entry.QueuePosition
		}
	}
	return maxPosition + 1
}

// DefaultScheduledSendDate spaces queued invitations one interval apart per
// position.
func DefaultScheduledSendDate(now time.Time, position int, interval time.Duration) time.Time {
	return now.Add(time.Duration(position) * interval)
}

// SortQueue orders entries by position, breaking ties by creation time.
func SortQueue(entries []InvitationQueueEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].QueuePosition != entries[j].QueuePosition {
			return entries[i].QueuePosition < entries[j].QueuePosition
		}
		return entries[i].CreatedDate.Before(entries[j].CreatedDate)
	})
}

// NormalizeQueue re-numbers entries densely from 1 in their current order and
// returns only the updates that change a stored position.
func NormalizeQueue(entries []InvitationQueueEntry) []QueuePositionUpdate {
	ordered := append([]InvitationQueueEntry(nil), entries...)
	SortQueue(ordered)
	updates := make([]QueuePositionUpdate, 0)
	for i, entry := range ordered {
		want := i + 1
		if entry.QueuePosition != want {
			updates = append(updates, QueuePositionUpdate{ID: entry.ID, QueuePosition: want})
		}
	}
	return updates
}

// ReorderQueue assigns positions 1..n following orderedIDs, which must be a
// permutation of the entry ids.
func ReorderQueue(entries []InvitationQueueEntry, orderedIDs []string) ([]QueuePositionUpdate, error) {
	if len(orderedIDs) != len(entries) {
		return nil, NewError(ErrInvalidInput, "reorder queue", "expected %d entry ids, got %d", len(entries), len(orderedIDs))
	}
	current := make(map[string]int, len(entries))
	for _, entry := range entries {
		current[entry.ID] = entry.QueuePosition
	}
	seen := make(map[string]struct{}, len(orderedIDs))
	updates := make([]QueuePositionUpdate, 0, len(orderedIDs))
	for i, id := range orderedIDs {
		position, ok := current[id]
		if !ok {
			return nil, NewError(ErrInvalidInput, "reorder queue", "entry %s is not in this queue", id)
		}
		if _, dup := seen[id]; dup {
			return nil, NewError(ErrInvalidInput, "reorder queue", "entry %s listed twice", id)
		}
		seen[id] = struct{}{}
		if position != i+1 {
			updates = append(updates, QueuePositionUpdate{ID: id, QueuePosition: i + 1})
		}
	}
	return updates, nil
}

// MoveQueueEntry swaps the entry with its neighbour in direction.
func MoveQueueEntry(entries []InvitationQueueEntry, id string, direction MoveDirection) ([]QueuePositionUpdate, error) {
	var step int
	switch direction {
	case MoveUp:
		step = -1
	case MoveDown:
		step = 1
	default:
		return nil, NewError(ErrInvalidInput, "move queue entry", "unknown direction %q", direction)
	}

	var current *InvitationQueueEntry
	for i := range entries {
		if entries[i].ID == id {
			current = &entries[i]
			break
		}
	}
	if current == nil {
		return nil, NewError(ErrNotFound, "move queue entry", "queue entry %s", id)
	}

	target := current.QueuePosition + step
	if target < 1 {
		return nil, NewError(ErrInvalidInput, "move queue entry", "entry %s is already at the top of the queue", id)
	}
	for _, entry := range entries {
		if entry.QueuePosition == target {
			return []QueuePositionUpdate{
				{ID: current.ID, QueuePosition: target},
				{ID: entry.ID, QueuePosition: current.QueuePosition},
			}, nil
		}
	}
	return nil, NewError(ErrInvalidInput, "move queue entry", "no entry at position %d", target)
}

// DueQueueEntries selects entries scheduled at or before now, in dispatch
// order: priority, then scheduled date, then queue position.
func DueQueueEntries(entries []InvitationQueueEntry, now time.Time) []InvitationQueueEntry {
	due := make([]InvitationQueueEntry, 0)
	for _, entry := range entries {
		if !entry.ScheduledSendDate.After(now) {
			due = append(due, entry)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		a, b := due[i], due[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() < b.Priority.Rank()
		}
		if !a.ScheduledSendDate.Equal(b.ScheduledSendDate) {
			return a.ScheduledSendDate.Before(b.ScheduledSendDate)
		}
		if a.ManuscriptID != b.ManuscriptID {
			return a.ManuscriptID < b.ManuscriptID
		}
		return a.QueuePosition < b.QueuePosition
	})
	return due
}
