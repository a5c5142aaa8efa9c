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
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMaybeDownloadLocal(t *testing.T) {
	d := new(downloader)
	defer d.Close()
	if k, err := d.maybeDownload(context.Background(), "/dev/null"); err != nil || k != "/dev/null" {
		t.Errorf("Expected /dev/null, got %s, %v", k, err)
	}
	if k, err := d.maybeDownload(context.Background(), "/blah/test/"); err != nil || k != "/blah/test/" {
		t.Errorf("Expected /blah/test/, got %s, %v", k, err)
	}
	if d.dir != "" {
		t.Error("a temporary directory was created for local files")
	}
}

func TestMaybeDownloadRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/grids/STU_EU_T_SAND.asc" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("ncols 1\n"))
	}))
	defer srv.Close()

	d := new(downloader)
	k, err := d.maybeDownload(context.Background(), srv.URL+"/grids/STU_EU_T_SAND.asc")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(k, "STU_EU_T_SAND.asc") {
		t.Errorf("Expected tempDir/STU_EU_T_SAND.asc, got %s", k)
	}
	b, err := ioutil.ReadFile(k)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "ncols 1\n" {
		t.Errorf("downloaded %q", b)
	}

	if _, err := d.maybeDownload(context.Background(), srv.URL+"/grids/missing.asc"); err == nil {
		t.Error("expected an error for a missing remote file")
	}

	dir := d.dir
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Error("Close did not remove the download directory")
	}
}

func TestMaybeDownloadRetry(t *testing.T) {
	calls := make(map[string]int)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls[r.URL.Path]++
		switch {
		case r.URL.Path != "/STU_EU_S_CLAY.asc":
			http.NotFound(w, r)
		case calls[r.URL.Path] == 1:
			http.Error(w, "busy", http.StatusServiceUnavailable)
		default:
			w.Write([]byte("ncols 2\n"))
		}
	}))
	defer srv.Close()

	d := &downloader{retries: 2}
	defer d.Close()
	k, err := d.maybeDownload(context.Background(), srv.URL+"/STU_EU_S_CLAY.asc")
	if err != nil {
		t.Fatal(err)
	}
	if n := calls["/STU_EU_S_CLAY.asc"]; n != 2 {
		t.Errorf("server was called %d times, want 2", n)
	}
	if b, err := ioutil.ReadFile(k); err != nil || string(b) != "ncols 2\n" {
		t.Errorf("downloaded %q, %v", b, err)
	}

	if _, err := d.maybeDownload(context.Background(), srv.URL+"/missing.asc"); err == nil {
		t.Error("expected an error for a missing remote file")
	}
	if n := calls["/missing.asc"]; n != 1 {
		t.Errorf("a client error was requested %d times", n)
	}
}

func TestMaybeDownloadRemoteFail(t *testing.T) {
	d := new(downloader)
	defer d.Close()
	if _, err := d.maybeDownload(context.Background(), "http://blah.invalid/test/"); err == nil {
		t.Error("expected an error for an unreachable host")
	}
}

func TestIsBlob(t *testing.T) {
	for path, want := range map[string]bool{
		"gs://bucket/x.asc":  true,
		"s3://bucket/x.asc":  true,
		"file://dir/x.asc":   true,
		"https://host/x.asc": false,
		"data/x.asc":         false,
	} {
		if got := IsBlob(path); got != want {
			t.Errorf("IsBlob(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestPathBase(t *testing.T) {
	if b := pathBase("/a/b/STU_EU_DEPTH_ROOTS.asc"); b != "STU_EU_DEPTH_ROOTS.asc" {
		t.Errorf("pathBase = %s", b)
	}
	if b := pathBase("/"); b != "download" {
		t.Errorf("pathBase(/) = %s", b)
	}
	if got := filepath.Base(pathBase("")); got != "download" {
		t.Errorf("pathBase(\"\") = %s", got)
	}
}
