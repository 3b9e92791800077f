package local

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mholt/archives"
)

// PluginHeader is the metadata block at the top of a plugin's main file.
type PluginHeader struct {
	Name    string
	Version string
}

// ErrPackageTooLarge means a package expands past its extraction budget.
var ErrPackageTooLarge = errors.New("package too large")

// Unpack extracts a zip package under dir and returns the plugin file
// identifier ("<folder>/<main>.php") together with its header. limit caps the
// total extracted bytes across all entries; zero or less means no cap.
func Unpack(ctx context.Context, data []byte, dir string, limit int64) (string, PluginHeader, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return "", PluginHeader{}, err
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return "", PluginHeader{}, fmt.Errorf("failed to create plugins dir: %w", err)
	}

	// Top-level .php files per folder, candidates for the main file.
	candidates := make(map[string][]string)
	remaining := limit

	handler := func(ctx context.Context, f archives.FileInfo) error {
		name := path.Clean(f.NameInArchive)
		if strings.HasPrefix(name, "../") || name == ".." || path.IsAbs(name) {
			return fmt.Errorf("illegal path in package: %s", f.NameInArchive)
		}
		target := filepath.Join(root, filepath.FromSlash(name))
		if !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return fmt.Errorf("illegal path in package: %s", f.NameInArchive)
		}

		if f.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		if f.Mode()&fs.ModeSymlink != 0 {
			// Packages from the directory never need links.
			return nil
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return err
		}
		src, err := f.Open()
		if err != nil {
			return err
		}
		defer src.Close()

		dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		var r io.Reader = src
		if limit > 0 {
			r = io.LimitReader(src, remaining+1)
		}
		n, err := io.Copy(dst, r)
		if err != nil {
			dst.Close()
			return err
		}
		if limit > 0 {
			if remaining -= n; remaining < 0 {
				dst.Close()
				os.Remove(target)
				return fmt.Errorf("%w: expands past %d bytes", ErrPackageTooLarge, limit)
			}
		}
		if err := dst.Close(); err != nil {
			return err
		}

		parts := strings.Split(name, "/")
		if len(parts) == 2 && strings.HasSuffix(parts[1], ".php") {
			candidates[parts[0]] = append(candidates[parts[0]], parts[1])
		}
		return nil
	}

	if err := (archives.Zip{}).Extract(ctx, bytes.NewReader(data), handler); err != nil {
		return "", PluginHeader{}, fmt.Errorf("failed to unpack package: %w", err)
	}

	folders := make([]string, 0, len(candidates))
	for folder := range candidates {
		folders = append(folders, folder)
	}
	sort.Strings(folders)
	for _, folder := range folders {
		files := candidates[folder]
		// "<folder>.php" is the conventional main file; try it first.
		sort.SliceStable(files, func(i, j int) bool {
			return files[i] == folder+".php" && files[j] != folder+".php"
		})
		for _, file := range files {
			hdr, ok := readHeader(filepath.Join(root, folder, file))
			if ok {
				return folder + "/" + file, hdr, nil
			}
		}
	}
	return "", PluginHeader{}, fmt.Errorf("package has no file with a Plugin Name header")
}

// readHeader scans the first few KB of a PHP file for the plugin header fields.
func readHeader(file string) (PluginHeader, bool) {
	f, err := os.Open(file)
	if err != nil {
		return PluginHeader{}, false
	}
	defer f.Close()

	var hdr PluginHeader
	sc := bufio.NewScanner(io.LimitReader(f, 8<<10))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		line = strings.TrimLeft(line, "/*# ")
		if v, ok := headerValue(line, "Plugin Name:"); ok {
			hdr.Name = v
		}
		if v, ok := headerValue(line, "Version:"); ok {
			hdr.Version = v
		}
	}
	return hdr, hdr.Name != ""
}

func headerValue(line, key string) (string, bool) {
	if len(line) < len(key) || !strings.EqualFold(line[:len(key)], key) {
		return "", false
	}
	v := strings.TrimSpace(line[len(key):])
	return strings.TrimSpace(strings.TrimSuffix(v, "*/")), true
}
