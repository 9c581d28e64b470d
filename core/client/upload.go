package client

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
)

// ChecksumSHA256 computes the base64 SHA-256 checksum the upload slot request
// and the transfer headers both carry.
func ChecksumSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}

// UploadArchive transfers the archive to the presigned URL with the checksum
// header and, when the slot carries a KMS key, the server-side-encryption
// headers. There is no retry; a failed transfer surfaces to the caller.
func (c *Client) UploadArchive(ctx context.Context, target *UploadTarget, archivePath, checksum string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target.UploadURL, f)
	if err != nil {
		return err
	}
	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", "application/zip")
	req.Header.Set("x-amz-checksum-sha256", checksum)

	kmsKey := target.KMSKeyARN
	if kmsKey == "" {
		kmsKey = c.kmsKeyARN
	}
	if kmsKey != "" {
		req.Header.Set("x-amz-server-side-encryption", "aws:kms")
		req.Header.Set("x-amz-server-side-encryption-aws-kms-key-id", kmsKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload archive: %w", humanizeNetError(err))
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("failed to upload archive: storage returned %s", resp.Status)
	}
	return nil
}
