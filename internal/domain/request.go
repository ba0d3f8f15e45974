package domain

import (
	"sort"
	"time"
)

type FlowType string

const (
	FlowSequential FlowType = "sequential"
	FlowParallel   FlowType = "parallel"
	FlowMixed      FlowType = "mixed"
)

type RequestState string

const (
	RequestPending    RequestState = "pending"
	RequestInProgress RequestState = "in_progress"
	RequestCompleted  RequestState = "completed"
	RequestCancelled  RequestState = "cancelled"
	RequestExpired    RequestState = "expired"
)

func (s RequestState) Terminal() bool {
	return s == RequestCompleted || s == RequestCancelled || s == RequestExpired
}

type SignerRole string

const (
	RoleApprover  SignerRole = "approver"
	RoleReviewer  SignerRole = "reviewer"
	RoleWitness   SignerRole = "witness"
	RoleAuthority SignerRole = "authority"
	RoleValidator SignerRole = "validator"
)

type SignerState string

const (
	SignerPending  SignerState = "pending"
	SignerSigned   SignerState = "signed"
	SignerRejected SignerState = "rejected"
)

// Signer is one participant slot in a signature request.
type Signer struct {
	ID         string
	RequestID  string
	UserID     string
	OrderIndex int
	Mandatory  bool
	Role       SignerRole
	State      SignerState
	Comment    string
	ActedAt    *time.Time
}

// SignatureRequest is one unit of work requiring one or more signatures
// on a single document.
type SignatureRequest struct {
	ID          string
	DocumentID  string
	RequesterID string
	Title       string
	Flow        FlowType
	Priority    int
	Deadline    *time.Time
	State       RequestState
	Signers     []Signer
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (r SignatureRequest) SignerForUser(userID string) *Signer {
	for i := range r.Signers {
		if r.Signers[i].UserID == userID {
			return &r.Signers[i]
		}
	}
	return nil
}

// AllMandatorySigned reports whether every mandatory signer has signed,
// which is the sole completion condition.
func (r SignatureRequest) AllMandatorySigned() bool {
	for _, s := range r.Signers {
		if s.Mandatory && s.State != SignerSigned {
			return false
		}
	}
	return true
}

// EligibleToAct enforces the turn-order invariant for the request's flow
// type. Sequential requires every mandatory signer with a strictly
// smaller order index to be signed. Mixed partitions signers into groups
// by order index; a group may act once all earlier groups are resolved.
// Parallel ignores order entirely.
func (r SignatureRequest) EligibleToAct(s Signer) bool {
	switch r.Flow {
	case FlowParallel:
		return true
	case FlowSequential:
		for _, other := range r.Signers {
			if other.Mandatory && other.OrderIndex < s.OrderIndex && other.State != SignerSigned {
				return false
			}
		}
		return true
	case FlowMixed:
		for _, other := range r.Signers {
			if other.OrderIndex >= s.OrderIndex {
				continue
			}
			if other.Mandatory && other.State != SignerSigned {
				return false
			}
		}
		return true
	}
	return false
}

// GroupIndexes returns the distinct order indexes in ascending order,
// i.e. the mixed-flow group boundaries.
func (r SignatureRequest) GroupIndexes() []int {
	seen := map[int]struct{}{}
	out := make([]int, 0, len(r.Signers))
	for _, s := range r.Signers {
		if _, ok := seen[s.OrderIndex]; ok {
			continue
		}
		seen[s.OrderIndex] = struct{}{}
		out = append(out, s.OrderIndex)
	}
	sort.Ints(out)
	return out
}

func (r SignatureRequest) PastDeadline(now time.Time) bool {
	return r.Deadline != nil && now.After(*r.Deadline)
}
