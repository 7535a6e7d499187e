package domain

import "time"

type InvitationMetrics struct {
	Invited   int `json:"invited"`
	Agreed    int `json:"agreed"`
	Declined  int `json:"declined"`
	Submitted int `json:"submitted"`
	Pending   int `json:"pending"`
	Expired   int `json:"expired"`
	Overdue   int `json:"overdue"`
}

// Bucketed is the number of invitations that landed in a status bucket.
func (m InvitationMetrics) Bucketed() int {
	return m.Agreed + m.Declined + m.Submitted + m.Pending + m.Expired + m.Overdue
}

type metricsBucket int

const (
	bucketNone metricsBucket = iota
	bucketAgreed
	bucketDeclined
	bucketSubmitted
	bucketPending
	bucketExpired
	bucketOverdue
)

// bucketFor lists every InvitationStatus explicitly; revoked and invalidated
// are counted only as invited. New statuses must be added here and to
// AllInvitationStatuses, which the tests walk.
func bucketFor(status InvitationStatus) metricsBucket {
	switch status {
	case InvitationAccepted:
		return bucketAgreed
	case InvitationDeclined:
		return bucketDeclined
	case InvitationReportSubmitted, InvitationCompleted:
		return bucketSubmitted
	case InvitationPending:
		return bucketPending
	case InvitationExpired:
		return bucketExpired
	case InvitationOverdue:
		return bucketOverdue
	case InvitationRevoked, InvitationInvalidated:
		return bucketNone
	default:
		return bucketNone
	}
}

func (m *InvitationMetrics) add(status InvitationStatus) {
	switch bucketFor(status) {
	case bucketAgreed:
		m.Agreed++
	case bucketDeclined:
		m.Declined++
	case bucketSubmitted:
		m.Submitted++
	case bucketPending:
		m.Pending++
	case bucketExpired:
		m.Expired++
	case bucketOverdue:
		m.Overdue++
	}
}

// AggregateInvitations counts invitations per stored status. Invited always
// equals len(invitations); statuses without a bucket only count as invited.
func AggregateInvitations(invitations []ReviewInvitation) InvitationMetrics {
	metrics := InvitationMetrics{Invited: len(invitations)}
	for _, inv := range invitations {
		metrics.add(inv.Status)
	}
	return metrics
}

// AggregateInvitationsAt counts invitations per effective status, so an
// accepted invitation past its due date lands in Overdue instead of Agreed.
func AggregateInvitationsAt(invitations []ReviewInvitation, now time.Time) InvitationMetrics {
	metrics := InvitationMetrics{Invited: len(invitations)}
	for _, inv := range invitations {
		metrics.add(EffectiveStatus(inv, now))
	}
	return metrics
}

// UnbucketedStatuses returns the distinct statuses that contributed only to
// Invited, in first-seen order.
func UnbucketedStatuses(invitations []ReviewInvitation) []InvitationStatus {
	seen := make(map[InvitationStatus]struct{})
	out := make([]InvitationStatus, 0)
	for _, inv := range invitations {
		if bucketFor(inv.Status) != bucketNone {
			continue
		}
		if _, ok := seen[inv.Status]; ok {
			continue
		}
		seen[inv.Status] = struct{}{}
		out = append(out, inv.Status)
	}
	return out
}
