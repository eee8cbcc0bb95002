package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// SnapshotCreate takes a server-side snapshot of the collection and
// returns its name.
func (s *Store) SnapshotCreate(ctx context.Context) (string, error) {
	desc, err := s.client.CreateSnapshot(ctx, s.collection)
	if err != nil {
		return "", fmt.Errorf("snapshot collection %s: %w", s.collection, err)
	}
	s.logger.Info("snapshot created",
		"collection", s.collection, "snapshot", desc.GetName())
	return desc.GetName(), nil
}

// SnapshotList returns the names of existing snapshots.
func (s *Store) SnapshotList(ctx context.Context) ([]string, error) {
	descs, err := s.client.ListSnapshots(ctx, s.collection)
	if err != nil {
		return nil, fmt.Errorf("list snapshots of %s: %w", s.collection, err)
	}
	names := make([]string, 0, len(descs))
	for _, d := range descs {
		names = append(names, d.GetName())
	}
	return names, nil
}

// SnapshotRestore recovers the collection from a snapshot. The gRPC
// API has no recovery call, so this goes through the server's HTTP
// endpoint. Location is a snapshot URL, a file path on the server, or
// a bare snapshot name, which resolves to this server's own snapshot
// download URL.
func (s *Store) SnapshotRestore(ctx context.Context, location string) error {
	if !strings.Contains(location, "://") && !strings.HasPrefix(location, "/") {
		location = fmt.Sprintf("%s/collections/%s/snapshots/%s",
			s.restBase, s.collection, location)
	}

	body, err := json.Marshal(map[string]string{"location": location})
	if err != nil {
		return fmt.Errorf("encode recover request: %w", err)
	}
	url := fmt.Sprintf("%s/collections/%s/snapshots/recover", s.restBase, s.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build recover request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("recover collection %s: %w", s.collection, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("recover collection %s: status %s: %s",
			s.collection, resp.Status, strings.TrimSpace(string(detail)))
	}

	s.logger.Info("snapshot restored",
		"collection", s.collection, "location", location)
	return nil
}
