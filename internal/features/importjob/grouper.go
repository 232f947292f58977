package importjob

import (
	"go-cohort/internal/config"
)

// Grouper detects rows within one file that denote the same person. It
// runs before store matching: a later row whose signature matches an
// earlier row at or above the confirm threshold joins that row's group
// and is flagged as a file duplicate instead of producing a second
// new/update outcome.
type Grouper struct {
	cfg    config.ImportConfig
	rows   []int
	seen   []Identity
	groups map[int]*FileGroup
	nextID int
}

func NewGrouper(cfg config.ImportConfig) *Grouper {
	return &Grouper{
		cfg:    cfg,
		groups: map[int]*FileGroup{},
		nextID: 1,
	}
}

// Check tests the row against all earlier rows in file order. On a
// duplicate it returns the earlier (representative) row number and the
// shared group id. Every row's signature is recorded either way.
func (g *Grouper) Check(rowNumber int, id Identity) (dupOfRow int, groupID int, isDup bool) {
	for i, earlier := range g.seen {
		confidence, _ := scoreIdentities(id, earlier, g.cfg)
		if confidence < g.cfg.ConfirmThreshold {
			continue
		}

		repRow := g.rows[i]
		group, ok := g.groups[repRow]
		if !ok {
			group = &FileGroup{
				GroupID:           g.nextID,
				RepresentativeRow: repRow,
				MemberRows:        []int{repRow},
			}
			g.groups[repRow] = group
			g.nextID++
		}
		group.MemberRows = append(group.MemberRows, rowNumber)

		g.record(rowNumber, id)
		return repRow, group.GroupID, true
	}

	g.record(rowNumber, id)
	return 0, 0, false
}

func (g *Grouper) record(rowNumber int, id Identity) {
	g.rows = append(g.rows, rowNumber)
	g.seen = append(g.seen, id)
}

// Groups returns all groups formed so far.
func (g *Grouper) Groups() []FileGroup {
	out := make([]FileGroup, 0, len(g.groups))
	for _, group := range g.groups {
		out = append(out, *group)
	}
	return out
}
