// Package matchmaking contains the pairing engine: partner selection under
// the history-avoidance policy, the race-safe commit protocol, and the
// session lifecycle (rotate and terminate).
package matchmaking

import (
	"context"
	goerrors "errors"
	"log/slog"
	"sort"

	"duo-chat/domain"
	"duo-chat/errors"
	"duo-chat/repositories"

	"github.com/samber/lo"
)

// maxAttempts bounds how many candidates one FindMatch call may try before
// giving up. Exceeding it is not an error, it means "no match this round,
// poll again later".
const maxAttempts = 10

// Matcher selects a partner for a waiting requester. Selection is greedy and
// per-request: fresh candidates (never paired with the requester) win, oldest
// first; when everyone has already met the requester it degrades to the
// least-paired candidate instead of refusing to pair.
type Matcher struct {
	participants repositories.IParticipantRepository
	history      repositories.IPairHistoryRepository
	committer    ICommitter
	log          *slog.Logger
}

func NewMatcher(
	participants repositories.IParticipantRepository,
	history repositories.IPairHistoryRepository,
	committer ICommitter,
	log *slog.Logger,
) *Matcher {
	return &Matcher{participants: participants, history: history, committer: committer, log: log}
}

// FindMatch pairs the requester with the best available candidate and
// returns the created session, or nil when no match could be made. Losing a
// candidate to a concurrent claim triggers a fresh pool query and another
// attempt; losing the requester aborts immediately since the requester's own
// state changed under us.
//
// The loop with an explicit attempt counter keeps the retry bound auditable
// and the stack depth constant.
func (m *Matcher) FindMatch(ctx context.Context, requesterID string) (*domain.Session, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		requester, err := m.participants.Get(requesterID)
		if goerrors.Is(err, errors.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if !requester.Waiting() {
			return nil, nil
		}

		pool, err := m.participants.ListWaiting(requesterID)
		if err != nil {
			return nil, err
		}
		if len(pool) == 0 {
			return nil, nil
		}

		candidate, err := m.selectCandidate(requesterID, pool)
		if err != nil {
			return nil, err
		}

		session, err := m.committer.Commit(ctx, requesterID, candidate.ID)
		switch {
		case err == nil:
			return &session, nil
		case goerrors.Is(err, errors.ErrIneligiblePartner):
			// The candidate was claimed first. The next pool query no
			// longer contains it, so the retry naturally moves on.
			m.log.Debug("candidate lost to a concurrent claim",
				"requester_id", requesterID,
				"candidate_id", candidate.ID,
				"attempt", attempt)
			continue
		case goerrors.Is(err, errors.ErrIneligibleRequester):
			return nil, nil
		default:
			return nil, err
		}
	}

	m.log.Debug("no match after retry budget", "requester_id", requesterID)
	return nil, nil
}

// selectCandidate applies the history-avoidance policy to an arrival-ordered
// pool: the oldest waiting fresh candidate when one exists, otherwise the
// least-paired candidate overall.
func (m *Matcher) selectCandidate(requesterID string, pool []domain.Participant) (domain.Participant, error) {
	partners, err := m.history.Partners(requesterID)
	if err != nil {
		return domain.Participant{}, err
	}
	seen := make(map[string]struct{}, len(partners))
	for _, partner := range partners {
		seen[partner] = struct{}{}
	}

	fresh := lo.Filter(pool, func(p domain.Participant, _ int) bool {
		_, met := seen[p.ID]
		return !met
	})
	if len(fresh) > 0 {
		return fresh[0], nil
	}

	return m.leastPaired(requesterID, pool)
}

// leastPaired is the exhaustion fallback: every candidate has already met
// the requester, so redistribute towards whoever has the fewest historical
// pairings overall.
func (m *Matcher) leastPaired(requesterID string, pool []domain.Participant) (domain.Participant, error) {
	type weighted struct {
		participant  domain.Participant
		pairCount    int
		metRequester bool
	}

	candidates := make([]weighted, 0, len(pool))
	for _, p := range pool {
		partners, err := m.history.Partners(p.ID)
		if err != nil {
			return domain.Participant{}, err
		}
		candidates = append(candidates, weighted{
			participant:  p,
			pairCount:    len(partners),
			metRequester: lo.Contains(partners, requesterID),
		})
	}

	// Candidates who have not met the requester win ties. On this branch the
	// fresh partition already took them, so the rule only fires when history
	// moved between the two reads; it is kept for that window. The stable
	// sort preserves the pool's arrival order as the final tie-break.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].pairCount != candidates[j].pairCount {
			return candidates[i].pairCount < candidates[j].pairCount
		}
		if candidates[i].metRequester != candidates[j].metRequester {
			return !candidates[i].metRequester
		}
		return false
	})

	return candidates[0].participant, nil
}
