package riot

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"draft-analyzer/internal/model"
)

// championData is one entry of Data Dragon's champion.json
type championData struct {
	ID    string   `json:"id"`
	Key   string   `json:"key"`
	Name  string   `json:"name"`
	Title string   `json:"title"`
	Tags  []string `json:"tags"`
}

// GetChampions loads the champion catalog from Data Dragon at the latest
// version. Static data needs no key and is not rate limited.
func (c *Client) GetChampions(ctx context.Context) ([]model.Champion, string, error) {
	var versions []string
	if err := c.getStatic(ctx, c.ddragonURL+"/api/versions.json", &versions); err != nil {
		return nil, "", fmt.Errorf("failed to fetch versions: %w", err)
	}
	if len(versions) == 0 {
		return nil, "", fmt.Errorf("no versions available")
	}
	version := versions[0]

	var champData struct {
		Data map[string]championData `json:"data"`
	}
	u := fmt.Sprintf("%s/cdn/%s/data/en_US/champion.json", c.ddragonURL, version)
	if err := c.getStatic(ctx, u, &champData); err != nil {
		return nil, "", fmt.Errorf("failed to fetch champions: %w", err)
	}

	champions := make([]model.Champion, 0, len(champData.Data))
	for id, champ := range champData.Data {
		key, err := strconv.Atoi(champ.Key)
		if err != nil {
			continue
		}
		champions = append(champions, model.Champion{
			ChampionID: key,
			Key:        id, // The map key is the icon ID (e.g., "Ahri", "MonkeyKing")
			Name:       champ.Name,
			Title:      champ.Title,
			Tags:       champ.Tags,
		})
	}
	sort.Slice(champions, func(i, j int) bool { return champions[i].ChampionID < champions[j].ChampionID })

	c.logger.Info("loaded champions from Data Dragon", "count", len(champions), "version", version)
	return champions, version, nil
}

func (c *Client) getStatic(ctx context.Context, url string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, result)
}
