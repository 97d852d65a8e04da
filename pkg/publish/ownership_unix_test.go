//go:build unix

package publish

import (
	"context"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"testing"
)

func TestResolveOwnership(t *testing.T) {
	uid, gid, err := resolveOwnership("", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if uid != -1 || gid != -1 {
		t.Errorf("empty owner/group should resolve to -1/-1, got %d/%d", uid, gid)
	}

	uid, gid, err = resolveOwnership("54321", "54321")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if uid != 54321 || gid != 54321 {
		t.Errorf("numeric ids should pass through, got %d/%d", uid, gid)
	}

	if _, _, err := resolveOwnership("no-such-user-ctrender", ""); err == nil {
		t.Error("expected error for unknown owner")
	}
}

func TestResolveOwnership_CurrentUser(t *testing.T) {
	u, err := user.Current()
	if err != nil {
		t.Skipf("cannot resolve current user: %v", err)
	}

	uid, _, err := resolveOwnership(u.Username, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, _ := strconv.Atoi(u.Uid); uid != want {
		t.Errorf("expected uid %d, got %d", want, uid)
	}
}

func TestPlace_OwnershipNoop(t *testing.T) {
	u, err := user.Current()
	if err != nil {
		t.Skipf("cannot resolve current user: %v", err)
	}

	dir := t.TempDir()
	src := filepath.Join(dir, "rendered")
	dest := filepath.Join(dir, "app.conf")
	writeFile(t, src, "same\n", 0o600)
	writeFile(t, dest, "same\n", 0o644)

	res, err := LocalPlacer{}.Place(context.Background(), Request{
		Src: src, Dest: dest, Owner: u.Uid,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Changed {
		t.Error("owning uid already matches, nothing should change")
	}
}

func TestCurrentOwnership(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	writeFile(t, path, "x", 0o600)

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	uid, _, ok := currentOwnership(info)
	if !ok {
		t.Fatal("expected ownership data from stat")
	}
	if uid != os.Getuid() {
		t.Errorf("expected uid %d, got %d", os.Getuid(), uid)
	}
}
