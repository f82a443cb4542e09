package dzn

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/alishhde/Couriers-Planning-Problem/internal/model"
)

// ReadRaw loads a tabular instance file.
func ReadRaw(path string) (model.RawInstance, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.RawInstance{}, err
	}
	defer f.Close()

	raw := model.RawInstance{Name: filepath.Base(path)}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		raw.Lines = append(raw.Lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return model.RawInstance{}, fmt.Errorf("read %s: %w", path, err)
	}
	return raw, nil
}

// TranscodeFile converts src into dst. dst is replaced atomically and left untouched on error.
func TranscodeFile(src, dst string) (model.TranscodedInstance, error) {
	raw, err := ReadRaw(src)
	if err != nil {
		return model.TranscodedInstance{}, err
	}
	inst, err := Transcode(raw)
	if err != nil {
		return model.TranscodedInstance{}, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return model.TranscodedInstance{}, err
	}
	if err := writeFileAtomic(dst, []byte(inst.Text), 0o644); err != nil {
		return model.TranscodedInstance{}, fmt.Errorf("write %s: %w", dst, err)
	}
	return inst, nil
}

// InstanceFileName is the data file name for the 1-based instance number.
func InstanceFileName(n int) string {
	return fmt.Sprintf("Instance%02d.dzn", n)
}

// ListSources returns the non-hidden regular files of dir in lexical order.
func ListSources(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// TranscodeDir converts every instance in srcDir into dstDir/InstanceNN.dzn, numbering
// sources by their sorted position. Files are independent so up to workers run at once.
func TranscodeDir(ctx context.Context, srcDir, dstDir string, workers int, log *zap.Logger) (int, error) {
	if log == nil {
		log = zap.NewNop()
	}
	names, err := ListSources(srcDir)
	if err != nil {
		return 0, err
	}
	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, name := range names {
		src := filepath.Join(srcDir, name)
		dst := filepath.Join(dstDir, InstanceFileName(i+1))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			inst, err := TranscodeFile(src, dst)
			if err != nil {
				return err
			}
			log.Debug("instance transcoded",
				zap.String("src", src),
				zap.String("dst", dst),
				zap.Int("couriers", inst.NumCourier),
				zap.Int("items", inst.NumItem))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(names), nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return err
	}
	_ = tmp.Sync() // best-effort durability
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
