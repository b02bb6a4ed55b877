// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	gossh "golang.org/x/crypto/ssh"
)

func TestServe(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Auth.BootstrapAdmin.Username = "boss"
	cfg.Auth.BootstrapAdmin.Password = "bosspw"
	cli := newTestCLI(t, cfg, "")

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	ready := make(chan map[string]string, 1)
	done := make(chan error, 1)
	go func() {
		done <- cli.app.serve(ctx, cfg, func(addrs map[string]string) { ready <- addrs })
	}()

	var addrs map[string]string
	select {
	case addrs = <-ready:
	case err := <-done:
		t.Fatalf("serve() returned early: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve() never became ready")
	}

	client := &http.Client{Timeout: 5 * time.Second, Transport: &http.Transport{DisableKeepAlives: true}}

	// The bootstrap admin can log in over HTTP.
	body, _ := json.Marshal(map[string]string{"username": "boss", "password": "bosspw"})
	resp, err := client.Post("http://"+addrs["http"]+"/api/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("login status = %d", resp.StatusCode)
	}

	// And over SSH, sharing the same account store.
	sshClient, err := gossh.Dial("tcp", addrs["ssh"], &gossh.ClientConfig{
		User:            "boss",
		Auth:            []gossh.AuthMethod{gossh.Password("bosspw")},
		HostKeyCallback: gossh.InsecureIgnoreHostKey(), //nolint:gosec // test server
		Timeout:         5 * time.Second,
	})
	if err != nil {
		t.Fatalf("ssh dial: %v", err)
	}
	sess, err := sshClient.NewSession()
	if err != nil {
		t.Fatal(err)
	}
	out, err := sess.Output("whoami")
	_ = sess.Close()
	_ = sshClient.Close()
	if err != nil || string(out) != "boss\n" {
		t.Errorf("ssh whoami = %q, %v", out, err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("serve() did not stop")
	}
	if !strings.Contains(cli.stderr.String(), "created bootstrap admin") {
		t.Errorf("log missing bootstrap message:\n%s", cli.stderr.String())
	}
}

func TestServePortInUse(t *testing.T) {
	t.Parallel()

	first := testConfig(t)
	first.SSH.Enabled = false
	cli := newTestCLI(t, first, "")
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	ready := make(chan map[string]string, 1)
	done := make(chan error, 1)
	go func() { done <- cli.app.serve(ctx, first, func(a map[string]string) { ready <- a }) }()
	addrs := <-ready

	second := testConfig(t)
	second.SSH.Enabled = false
	second.HTTP.Address = addrs["http"]
	err := newTestCLI(t, second, "").app.serve(t.Context(), second, nil)
	if err == nil || !strings.Contains(err.Error(), "failed to start http") {
		t.Errorf("serve() on a busy port = %v", err)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("first serve() error = %v", err)
	}
}
