/*
Copyright © 2019 the stulayers authors.
This file is part of stulayers.

stulayers is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

stulayers is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with stulayers.  If not, see <http://www.gnu.org/licenses/>.
*/

package stulayersutil

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/cenkalti/backoff"
	"github.com/google/go-cloud/blob"
	"github.com/google/go-cloud/blob/fileblob"
	"github.com/google/go-cloud/blob/gcsblob"
	"github.com/google/go-cloud/blob/s3blob"
	"github.com/google/go-cloud/gcp"
	"github.com/sirupsen/logrus"
)

// downloader fetches remote files into a temporary directory that is
// shared by all downloads of one command.
type downloader struct {
	dir string

	// retries is the number of times a failed download is retried.
	retries uint64
}

// Close removes the downloaded files.
func (d *downloader) Close() error {
	if d.dir == "" {
		return nil
	}
	err := os.RemoveAll(d.dir)
	d.dir = ""
	return err
}

func (d *downloader) tempDir() (string, error) {
	if d.dir != "" {
		return d.dir, nil
	}
	dir, err := ioutil.TempDir("", "stulayers")
	if err != nil {
		return "", fmt.Errorf("stulayersutil: failed creating temporary download directory: %v", err)
	}
	d.dir = dir
	return dir, nil
}

// maybeDownload checks if the input is an existing file locally.
// If not, it checks if the file is a URL.
// If it's a URL, it downloads the file and
// returns the path to the downloaded file.
func (d *downloader) maybeDownload(ctx context.Context, path string) (string, error) {
	// Check if local file exists. If it does, return the given path.
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return path, nil
	}

	// If the path starts with one of these prefixes, download the file and
	// return the location it was downloaded to.
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return d.downloadHTTP(ctx, path)
	}

	if IsBlob(path) {
		return d.downloadBlob(ctx, path)
	}

	return path, nil
}

// retry runs op with exponential backoff and gives up after d.retries
// failed retries.
func (d *downloader) retry(ctx context.Context, path string, op func() error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), d.retries), ctx)
	return backoff.RetryNotify(op, b, func(err error, wait time.Duration) {
		logrus.WithFields(logrus.Fields{
			"path": path,
			"wait": wait,
		}).Warnf("download failed, retrying: %v", err)
	})
}

// downloadHTTP downloads a file from the specified URL and returns
// the path to the downloaded file. Responses with a client error status
// are not retried.
func (d *downloader) downloadHTTP(ctx context.Context, path string) (string, error) {
	dir, err := d.tempDir()
	if err != nil {
		return path, err
	}
	u, err := url.Parse(path)
	if err != nil {
		return path, err
	}
	req, err := http.NewRequest("GET", path, nil)
	if err != nil {
		return path, fmt.Errorf("stulayersutil: downloading %s: %v", path, err)
	}
	dst := filepath.Join(dir, pathBase(u.Path))
	err = d.retry(ctx, path, func() error {
		resp, err := http.DefaultClient.Do(req.WithContext(ctx))
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		switch {
		case resp.StatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("%s", resp.Status)
		case resp.StatusCode != http.StatusOK:
			return backoff.Permanent(fmt.Errorf("%s", resp.Status))
		}
		_, err = writeFile(dst, resp.Body)
		return err
	})
	if err != nil {
		return path, fmt.Errorf("stulayersutil: downloading %s: %v", path, err)
	}
	return dst, nil
}

// IsBlob returns whether the given filename represents a blob.
// (i.e., if it starts with `gs://`, 's3://', or 'file://').
func IsBlob(path string) bool {
	return strings.HasPrefix(path, "gs://") || strings.HasPrefix(path, "s3://") || strings.HasPrefix(path, "file://")
}

// OpenBucket returns the blob storage bucket specified by bucketName,
// where bucketName must be in the format 'provider://name' where provider
// is the name of the storage provider and name is the name of the bucket.
// The currently accepted storage providers are "file" for the local filesystem
// (e.g., for testing), "gs" for Google Cloud Storage, and "s3" for AWS S3.
func OpenBucket(ctx context.Context, bucketName string) (*blob.Bucket, error) {
	url, err := url.Parse(bucketName)
	if err != nil {
		return nil, fmt.Errorf("stulayersutil.OpenBucket: %v", err)
	}
	switch url.Scheme {
	case "file":
		return fileblob.NewBucket(url.Hostname())
	case "gs":
		return gsBucket(ctx, url.Hostname())
	case "s3":
		return s3Bucket(ctx, url.Hostname())
	default:
		return nil, fmt.Errorf("stulayersutil.OpenBucket: invalid provider %s", url.Scheme)
	}
}

func gsBucket(ctx context.Context, name string) (*blob.Bucket, error) {
	// See here for information on credentials:
	// https://cloud.google.com/docs/authentication/getting-started
	creds, err := gcp.DefaultCredentials(ctx)
	if err != nil {
		return nil, err
	}
	c, err := gcp.NewHTTPClient(gcp.DefaultTransport(), gcp.CredentialsTokenSource(creds))
	if err != nil {
		return nil, err
	}
	return gcsblob.OpenBucket(ctx, name, c)
}

// s3Bucket opens an s3 storage bucket. It assumes the following
// environment variables are set: AWS_REGION, AWS_ACCESS_KEY_ID, and
// AWS_SECRET_ACCESS_KEY.
func s3Bucket(ctx context.Context, name string) (*blob.Bucket, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "eu-central-1"
	}
	c := &aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewEnvCredentials(),
	}
	s, err := session.NewSession(c)
	if err != nil {
		return nil, err
	}
	return s3blob.OpenBucket(ctx, s, name)
}

// downloadBlob downloads the specified file from blob storage.
func (d *downloader) downloadBlob(ctx context.Context, path string) (string, error) {
	url, err := url.Parse(path)
	if err != nil {
		return path, err
	}
	bucket, err := OpenBucket(ctx, url.Scheme+"://"+url.Host)
	if err != nil {
		return path, err
	}
	dir, err := d.tempDir()
	if err != nil {
		return path, err
	}
	dst := filepath.Join(dir, pathBase(url.Path))
	err = d.retry(ctx, path, func() error {
		r, err := bucket.NewReader(ctx, strings.TrimPrefix(url.Path, "/"))
		if err != nil {
			return err
		}
		defer r.Close()
		_, err = writeFile(dst, r)
		return err
	})
	if err != nil {
		return path, fmt.Errorf("stulayersutil: downloading %s: %v", path, err)
	}
	return dst, nil
}

// writeFile copies r into a new file at dst and returns dst.
func writeFile(dst string, r io.Reader) (string, error) {
	w, err := os.Create(dst)
	if err != nil {
		return dst, fmt.Errorf("stulayersutil: failed creating file for download: %v", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return dst, fmt.Errorf("stulayersutil: writing %s: %v", dst, err)
	}
	return dst, w.Close()
}

func pathBase(p string) string {
	b := path.Base(p)
	if b == "/" || b == "." {
		return "download"
	}
	return b
}
