package hh

import (
	"context"
	"fmt"
	"strconv"

	"github.com/amishk599/rankwatch/internal/model"
)

// FetchAllPostings pages through every non-archived vacancy of the employer.
// The walk stops on an empty page or when the reported page count equals the
// number of pages consumed. Any failure aborts the walk without a partial result.
func (c *Client) FetchAllPostings(ctx context.Context, employerID string) ([]model.Posting, error) {
	var all []model.Posting

	for page := 0; ; {
		resp, err := c.vacancies(ctx, map[string]string{
			"employer_id": employerID,
			"per_page":    strconv.Itoa(PageSize),
			"page":        strconv.Itoa(page),
			"archived":    "false",
		})
		if err != nil {
			return nil, fmt.Errorf("fetch postings for employer %s (page %d): %w", employerID, page, err)
		}
		if len(resp.Items) == 0 {
			break
		}

		for _, item := range resp.Items {
			p, err := postingFromItem(item)
			if err != nil {
				return nil, fmt.Errorf("fetch postings for employer %s (page %d): %w", employerID, page, err)
			}
			all = append(all, p)
		}

		page++
		c.logger.Debug("fetched postings page",
			"employer_id", employerID,
			"page", page,
			"pages", resp.Pages,
			"items", len(resp.Items),
		)
		if resp.Pages == page {
			break
		}
	}

	c.logger.Info("fetched postings", "employer_id", employerID, "count", len(all))
	return all, nil
}

func postingFromItem(item vacancyItem) (model.Posting, error) {
	id, err := parseID("vacancy", item.ID)
	if err != nil {
		return model.Posting{}, err
	}
	areaID, err := parseID("area", item.Area.ID)
	if err != nil {
		return model.Posting{}, fmt.Errorf("vacancy %d: %w", id, err)
	}

	p := model.Posting{
		ID:          id,
		RawTitle:    item.Name,
		AreaName:    item.Area.Name,
		AreaID:      int(areaID),
		URL:         item.AlternateURL,
		PublishedAt: parsePublishedAt(item.PublishedAt),
	}
	if item.Schedule != nil {
		p.ScheduleID = item.Schedule.ID
	}
	return p, nil
}
