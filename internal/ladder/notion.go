package ladder

import (
	"context"
	"sort"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/impactpool/milestone-cli/internal/model"
)

// DatabaseQueryer is the slice of the Notion API the loader needs.
// *notionapi.DatabaseService satisfies it.
type DatabaseQueryer interface {
	Query(ctx context.Context, id notionapi.DatabaseID, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
}

// LoadNotion reads milestone definitions from a Notion database where the
// ops team maintains them: one row per threshold with a Category select, a
// Threshold number, and an Active status. Breakpoints come from the default
// configuration; Notion only overrides the threshold lists.
func LoadNotion(ctx context.Context, db DatabaseQueryer, dbID string) (Config, error) {
	filter := &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: "Status",
			Status: &notionapi.StatusFilterCondition{
				Equals: "Active",
			},
		},
	}

	var pages []notionapi.Page
	for {
		resp, err := db.Query(ctx, notionapi.DatabaseID(dbID), filter)
		if err != nil {
			return Config{}, eris.Wrap(err, "ladder: query notion database")
		}
		pages = append(pages, resp.Results...)
		if !resp.HasMore {
			break
		}
		filter.StartCursor = notionapi.Cursor(resp.NextCursor)
	}

	cfg := Default()
	thresholds := map[model.Category][]float64{}
	for _, p := range pages {
		cat, amount, err := parseMilestonePage(p)
		if err != nil {
			zap.L().Warn("ladder: skipping malformed milestone page",
				zap.String("page_id", string(p.ID)),
				zap.Error(err),
			)
			continue
		}
		thresholds[cat] = append(thresholds[cat], amount)
	}

	if rows := thresholds[model.CategoryPool]; len(rows) > 0 {
		sort.Float64s(rows)
		cfg.Pool.Thresholds = rows
	}
	if rows := thresholds[model.CategoryIndividual]; len(rows) > 0 {
		sort.Float64s(rows)
		cfg.Individual.Thresholds = rows
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func parseMilestonePage(p notionapi.Page) (model.Category, float64, error) {
	var cat model.Category
	if prop, ok := p.Properties["Category"]; ok {
		if sp, ok := prop.(*notionapi.SelectProperty); ok {
			switch sp.Select.Name {
			case "Pool":
				cat = model.CategoryPool
			case "Individual":
				cat = model.CategoryIndividual
			}
		}
	}
	if !cat.Valid() {
		return "", 0, eris.New("ladder: missing or unknown Category select")
	}

	var amount float64
	if prop, ok := p.Properties["Threshold"]; ok {
		if np, ok := prop.(*notionapi.NumberProperty); ok {
			amount = np.Number
		}
	}
	if amount <= 0 {
		return "", 0, eris.New("ladder: missing or non-positive Threshold number")
	}

	return cat, amount, nil
}
