package dockerengine

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/moby/moby/client"
)

// pullStatusLine is one line of the Docker daemon's newline-delimited JSON
// pull progress stream.
type pullStatusLine struct {
	Status         string `json:"status"`
	ID             string `json:"id"`
	ProgressDetail struct {
		Current int64 `json:"current"`
		Total   int64 `json:"total"`
	} `json:"progressDetail"`
	Error string `json:"error"`
}

// Pull pulls repo:tag from its registry, invoking sink once per decoded
// status line so callers can observe progress events ("Pulling fs layer",
// "Downloading", "Extracting", "Status: Downloaded newer image for …") as
// they arrive rather than only learning that the pull finished.
//
// sink may be nil, in which case the stream is still drained (the pull
// does not complete until the response body is read to EOF).
func (c *Client) Pull(ctx context.Context, repo, tag string, sink func(PullEvent)) error {
	ref := repo + ":" + tag
	resp, err := c.api.ImagePull(ctx, ref, client.ImagePullOptions{})
	if err != nil {
		return classify(err)
	}
	defer resp.Close()

	dec := json.NewDecoder(bufio.NewReader(resp))
	for {
		var line pullStatusLine
		if err := dec.Decode(&line); err != nil {
			if err == io.EOF {
				break
			}
			return classify(err)
		}
		if line.Error != "" {
			return classify(&pullError{msg: line.Error})
		}
		if sink != nil {
			sink(PullEvent{Status: line.Status, Progress: line.ID})
		}
	}
	return nil
}

type pullError struct{ msg string }

func (e *pullError) Error() string { return e.msg }

// parseCreated parses the RFC3339Nano timestamp the inspect endpoint
// reports for an image's Created field into a unix timestamp, matching
// the int64 form the list endpoint already uses.
func parseCreated(s string) int64 {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0
	}
	return t.Unix()
}
