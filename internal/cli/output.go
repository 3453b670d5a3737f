package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/devello/devello-studios/internal/provider"
)

// maxOutputBytes bounds downloaded results.
const maxOutputBytes = 64 << 20

// WriteOutput stores an output reference (data URL or http(s) URL) at path.
func WriteOutput(ctx context.Context, hc *http.Client, ref, path string) error {
	var data []byte
	var err error
	if strings.HasPrefix(ref, "data:") {
		data, _, err = provider.DecodeBase64Image(ref)
	} else {
		data, err = download(ctx, hc, ref)
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	log.Info().Str("path", path).Int("bytes", len(data)).Msg("Output saved")
	return nil
}

func download(ctx context.Context, hc *http.Client, url string) ([]byte, error) {
	if hc == nil {
		hc = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download output: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download output: HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxOutputBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}
	if len(data) > maxOutputBytes {
		return nil, errors.New("output exceeds download limit")
	}
	return data, nil
}
