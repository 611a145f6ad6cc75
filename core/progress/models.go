package progress

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"
)

// IDSet is a set of identifiers. It marshals to a sorted JSON array.
type IDSet map[string]struct{}

func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	s.Add(ids...)
	return s
}

func (s IDSet) Add(ids ...string) {
	for _, id := range ids {
		if id != "" {
			s[id] = struct{}{}
		}
	}
}

func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s IDSet) Clone() IDSet {
	c := make(IDSet, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}

// Union returns a new set holding the members of both sets.
func (s IDSet) Union(o IDSet) IDSet {
	u := s.Clone()
	for id := range o {
		u[id] = struct{}{}
	}
	return u
}

// Contains reports whether every member of o is in s.
func (s IDSet) Contains(o IDSet) bool {
	for id := range o {
		if !s.Has(id) {
			return false
		}
	}
	return true
}

// Missing returns the members of o that are not in s, sorted.
func (s IDSet) Missing(o IDSet) []string {
	missing := make([]string, 0)
	for id := range o {
		if !s.Has(id) {
			missing = append(missing, id)
		}
	}
	sort.Strings(missing)
	return missing
}

func (s IDSet) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s IDSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *IDSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewIDSet(ids...)
	return nil
}

// CompletionRecord is the progress of one identity.
// Points is a non-decreasing counter: points are captured when a mission is completed
// and never recomputed from the catalog.
type CompletionRecord struct {
	Points    int       `json:"points"`
	Completed IDSet     `json:"completed"`
	SyncID    string    `json:"sync_id,omitempty"` // guest records only
	Syncs     IDSet     `json:"syncs,omitempty"`   // account records only: one SyncMark per merge
	UpdatedAt time.Time `json:"updated_at"`
}

// SyncMark records, in an account's Syncs, that the guest record syncID was merged while it held points.
func SyncMark(syncID string, points int) string {
	return syncID + "/" + strconv.Itoa(points)
}

// MergedPoints returns the most points ever merged from the guest record syncID,
// and whether that record was merged at all.
func (r CompletionRecord) MergedPoints(syncID string) (int, bool) {
	var (
		most  int
		found bool
	)
	if syncID == "" {
		return 0, false
	}
	for mark := range r.Syncs {
		i := strings.LastIndexByte(mark, '/')
		if i < 0 || mark[:i] != syncID {
			continue
		}
		points, err := strconv.Atoi(mark[i+1:])
		if err != nil {
			continue
		}
		if !found || points > most {
			most = points
		}
		found = true
	}
	return most, found
}

func NewCompletionRecord() CompletionRecord {
	return CompletionRecord{Completed: NewIDSet(), Syncs: NewIDSet()}
}

// IsEmpty reports whether the record holds no progress at all.
func (r CompletionRecord) IsEmpty() bool {
	return r.Points == 0 && len(r.Completed) == 0
}

// HasCompleted reports whether missionID is in the completed set.
func (r CompletionRecord) HasCompleted(missionID string) bool {
	return r.Completed.Has(missionID)
}

// Clone returns a deep copy; the sets of the copy are never nil.
func (r CompletionRecord) Clone() CompletionRecord {
	c := r
	c.Completed = r.Completed.Clone()
	c.Syncs = r.Syncs.Clone()
	return c
}

// ExtendedBy reports whether next is a legal successor of r: no mission lost, no point taken away.
func (r CompletionRecord) ExtendedBy(next CompletionRecord) bool {
	return next.Points >= r.Points && next.Completed.Contains(r.Completed) && next.Syncs.Contains(r.Syncs)
}

// IdentityKind tells guests and accounts apart.
type IdentityKind int

const (
	KindGuest IdentityKind = iota
	KindAccount
)

// Identity is who progress is recorded for. It is always passed explicitly.
type Identity struct {
	Kind      IdentityKind
	AccountID string
}

func Guest() Identity { return Identity{Kind: KindGuest} }

func Account(id string) Identity { return Identity{Kind: KindAccount, AccountID: id} }

func (id Identity) IsGuest() bool { return id.Kind == KindGuest }

func (id Identity) String() string {
	if id.IsGuest() {
		return "guest"
	}
	return "account:" + id.AccountID
}

type ResultStatus string

const (
	// ResultNoOp: there was no guest progress to merge.
	ResultNoOp ResultStatus = "noop"
	// ResultMerged: guest progress was written into the account.
	ResultMerged ResultStatus = "merged"
	// ResultAlreadyMerged: this guest record had been merged before and holds nothing new;
	// only the guest cache was cleared.
	ResultAlreadyMerged ResultStatus = "already_merged"
	// ResultPending: the merge could not be written; guest progress is kept for the next attempt.
	ResultPending ResultStatus = "pending"
)

type ReconciliationResult struct {
	Status      ResultStatus     `json:"status"`
	AccountID   string           `json:"account_id"`
	Added       []string         `json:"added"`        // missions new to the account
	PointsAdded int              `json:"points_added"` // guest points added on top of the account's
	Record      CompletionRecord `json:"record"`       // account record after the merge
	At          time.Time        `json:"at"`
	// ClearErr is set when the merge was written but the guest cache could not be cleared.
	// The next reconciliation of the same guest record only adds what the guest earned since.
	ClearErr error `json:"-"`
	// Err is the cause of a ResultPending.
	Err error `json:"-"`
}
