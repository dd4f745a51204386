package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/DeafMist/news-indexer/backend/internal/models"
)

// IndexError reports a write that Elasticsearch did not acknowledge.
type IndexError struct {
	Index      string
	DocumentID string
	Status     int
	Reason     string
	Err        error
}

func (e *IndexError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("index %s/%s: %v", e.Index, e.DocumentID, e.Err)
	}
	return fmt.Sprintf("index %s/%s: status %d: %s", e.Index, e.DocumentID, e.Status, e.Reason)
}

func (e *IndexError) Unwrap() error { return e.Err }

// IndexArticle writes doc under id. The write counts as acknowledged only
// when Elasticsearch answers 2xx with result "created" or "updated"; any
// other outcome is an *IndexError. Writing the same id twice overwrites.
func (c *Client) IndexArticle(ctx context.Context, id string, doc models.ArticleDocument) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return &IndexError{Index: c.index, DocumentID: id, Err: fmt.Errorf("marshal doc: %w", err)}
	}

	req := esapi.IndexRequest{
		Index:      c.index,
		DocumentID: id,
		Body:       bytes.NewReader(payload),
		Refresh:    "false",
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return &IndexError{Index: c.index, DocumentID: id, Err: err}
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	if res.IsError() {
		return &IndexError{
			Index:      c.index,
			DocumentID: id,
			Status:     res.StatusCode,
			Reason:     strings.TrimSpace(string(body)),
		}
	}

	var ack struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal(body, &ack); err != nil {
		return &IndexError{Index: c.index, DocumentID: id, Status: res.StatusCode, Err: fmt.Errorf("decode index response: %w", err)}
	}
	if ack.Result != "created" && ack.Result != "updated" {
		return &IndexError{
			Index:      c.index,
			DocumentID: id,
			Status:     res.StatusCode,
			Reason:     fmt.Sprintf("unexpected result %q", ack.Result),
		}
	}

	return nil
}
