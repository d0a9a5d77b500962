/*
   plugchain - extension-point runtime
   Copyright (C) 2025  the plugchain Contributors

   This program is free software: you can redistribute it and/or modify
   it under the terms of the GNU Affero General Public License as published by
   the Free Software Foundation, version 3.

   This program is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
   GNU Affero General Public License for more details.

   You should have received a copy of the GNU Affero General Public License
   along with this program.  If not, see <http://www.gnu.org/licenses/>.
*/

package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"plugchain/hook"
	_ "plugchain/shop"
)

func testSettings(t *testing.T) *Settings {
	settings := DefaultSettings()
	settings.DataDir = t.TempDir()
	settings.HTTP.Bind = "127.0.0.1:0"
	settings.HTTP.LogRequestDetails = false
	settings.Plugins.Config = map[string]map[string]interface{}{
		"catalog": {
			"products": []map[string]interface{}{
				{"sku": "mug", "name": "Mug", "price": int64(800), "stock": int64(4)},
			},
		},
		"tax": {"rate": 20.0},
	}
	return &settings
}

func TestNewServer(t *testing.T) {
	srv, err := NewServer(testSettings(t))
	if err != nil {
		t.Fatalf("NewServer failed: %+v", err)
	}
	defer srv.Stop()

	if got := srv.Host().Modules(); len(got) != len(DefaultPlugins) {
		t.Errorf("Expected %d modules, got %v", len(DefaultPlugins), got)
	}

	tests := []struct {
		method, path string
		status       int
		contains     string
	}{
		{"GET", "/products/mug", http.StatusOK, `"price":960`},
		{"GET", "/products/hat", http.StatusNotFound, "product not found"},
		{"GET", "/views/views/product", http.StatusNotFound, "product not found"},
		{"GET", "/views/views/checkout", http.StatusMethodNotAllowed, ""},
		{"GET", "/views/views/add_to_cart", http.StatusMethodNotAllowed, ""},
		{"POST", "/views/views/product", http.StatusMethodNotAllowed, ""},
		{"POST", "/carts/c1/items?sku=mug&qty=1", http.StatusOK, `"qty":1`},
		{"GET", "/metrics", http.StatusOK, "plugchain_dispatch_total"},
		{"GET", "/nothing", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
		if w.Code != tt.status {
			t.Errorf("%s %s: expected status %d, got %d", tt.method, tt.path, tt.status, w.Code)
		}
		if !strings.Contains(w.Body.String(), tt.contains) {
			t.Errorf("%s %s: expected body to contain %q, got %q", tt.method, tt.path, tt.contains, w.Body.String())
		}
	}
}

func TestNewServerUnknownModule(t *testing.T) {
	settings := testSettings(t)
	settings.Plugins.Enabled = []string{"catalog", "loyalty"}
	_, err := NewServer(settings)
	if err == nil || !strings.Contains(err.Error(), `"loyalty": no such module`) {
		t.Errorf("Expected unknown module error, got %v", err)
	}
}

func TestNewServerStrictLinks(t *testing.T) {
	settings := testSettings(t)
	// tax links into pricing, which is not enabled.
	settings.Plugins.Enabled = []string{"catalog", "tax"}
	settings.Plugins.StrictLinks = true
	_, err := NewServer(settings)
	if errors.Cause(err) != hook.ErrDanglingLink {
		t.Errorf("Expected dangling link error, got %v", err)
	}

	settings.Plugins.StrictLinks = false
	srv, err := NewServer(settings)
	if err != nil {
		t.Fatalf("NewServer failed: %+v", err)
	}
	srv.Stop()
}

func TestStartStop(t *testing.T) {
	srv, err := NewServer(testSettings(t))
	if err != nil {
		t.Fatalf("NewServer failed: %+v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("Start failed: %+v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/products/mug")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d: %s", resp.StatusCode, body)
	}

	srv.Stop()
	if err := srv.Wait(); err != ErrStopping {
		t.Errorf("Expected ErrStopping, got %v", err)
	}
}

func TestViewPath(t *testing.T) {
	if got := viewPath("/views/", "views.product"); got != "/views/views/product" {
		t.Errorf("unexpected view path %q", got)
	}
	if got := viewPath("/v", "shop.admin.index"); got != "/v/shop.admin/index" {
		t.Errorf("unexpected view path %q", got)
	}
}
