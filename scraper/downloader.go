// scraper/downloader.go
package scraper

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
)

// DownloadFile downloads fileURL and saves it to localSavePath, replacing any
// previous file. The body is streamed to a temporary file next to the target
// and renamed into place, so a failed download never leaves a partial archive.
func (c *Client) DownloadFile(ctx context.Context, fileURL, localSavePath string) error {
	log.Printf("Scraper: Attempting to download file from URL: %s to local path: %s\n", fileURL, localSavePath)

	res, err := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(fileURL)
	if err != nil {
		return fmt.Errorf("failed to make GET request to %s: %w", fileURL, err)
	}
	body := res.RawBody()
	defer body.Close()

	if !res.IsSuccess() {
		return fmt.Errorf("failed to download file from %s: received status code %d", fileURL, res.StatusCode())
	}

	dir := filepath.Dir(localSavePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	partPath := localSavePath + ".part"
	outFile, err := os.Create(partPath)
	if err != nil {
		return fmt.Errorf("failed to create local file %s: %w", partPath, err)
	}

	written, err := io.Copy(outFile, body)
	if closeErr := outFile.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(partPath)
		return fmt.Errorf("failed to copy downloaded content to %s: %w", partPath, err)
	}

	if err := os.Rename(partPath, localSavePath); err != nil {
		os.Remove(partPath)
		return fmt.Errorf("failed to move %s into place: %w", partPath, err)
	}

	log.Printf("Scraper: Successfully downloaded %s to %s (%d bytes)\n", fileURL, localSavePath, written)
	return nil
}
