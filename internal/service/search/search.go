package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/mrbooking/backend/internal/models"
)

// IndexRoom writes the room document under its numeric id so repeated
// indexing after updates stays idempotent.
func IndexRoom(ctx context.Context, es *elasticsearch.Client, index string, room *models.MeetingRoom) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(room); err != nil {
		return fmt.Errorf("index room: %w", err)
	}

	res, err := es.Index(
		index,
		&buf,
		es.Index.WithContext(ctx),
		es.Index.WithDocumentID(strconv.FormatUint(uint64(room.ID), 10)),
	)
	if err != nil {
		return fmt.Errorf("index room: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index room: %s", res.Status())
	}
	return nil
}

func DeleteRoom(ctx context.Context, es *elasticsearch.Client, index string, id uint) error {
	res, err := es.Delete(
		index,
		strconv.FormatUint(uint64(id), 10),
		es.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("delete room: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete room: %s", res.Status())
	}
	return nil
}

func Search(ctx context.Context, es *elasticsearch.Client, index, query string, from, size int) (int64, []models.MeetingRoom, error) {
	body := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    []string{"name^2", "location", "equipment", "description"},
				"fuzziness": "AUTO",
			},
		},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("search rooms: %w", err)
	}

	res, err := es.Search(
		es.Search.WithContext(ctx),
		es.Search.WithIndex(index),
		es.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("search rooms: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, fmt.Errorf("search rooms: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.MeetingRoom `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, err
	}

	rooms := make([]models.MeetingRoom, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		rooms[i] = hit.Source
	}
	return r.Hits.Total.Value, rooms, nil
}
