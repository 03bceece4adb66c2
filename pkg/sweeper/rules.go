package sweeper

import (
	"time"

	"github.com/nstogner/labassist/pkg/domain"
)

// eligibility decides whether an enumerated record may be deleted.
type eligibility func(rec domain.ResourceRecord, maxAge time.Duration, now time.Time) bool

// rules holds the age-based kinds. The assistant kind has no rule: it is
// deleted only on explicit opt-in, regardless of age.
var rules = map[domain.ResourceKind]eligibility{
	domain.KindThread: olderThan,
	domain.KindFile: func(rec domain.ResourceRecord, maxAge time.Duration, now time.Time) bool {
		return rec.Purpose == domain.PurposeAssistants && olderThan(rec, maxAge, now)
	},
	domain.KindVectorIndex: olderThan,
}

// olderThan is strict: a record exactly maxAge old is kept.
func olderThan(rec domain.ResourceRecord, maxAge time.Duration, now time.Time) bool {
	return rec.Age(now) > maxAge
}
