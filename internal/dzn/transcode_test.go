package dzn

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alishhde/Couriers-Planning-Problem/internal/model"
)

func sampleRaw() model.RawInstance {
	return model.RawInstance{Name: "inst01.dat", Lines: []string{
		"2",
		"3",
		"15 10",
		"3 2 6",
		"0 3 3 6",
		"3 0 4 5",
		"3 4 0 2",
		"6 5 2 0",
	}}
}

const sampleText = `num_courier = 2;
num_item = 3;
courier_capacity = [15, 10];
item_size = [3, 2, 6];
distance_mat = [| 0, 3, 3, 6
| 3, 0, 4, 5
| 3, 4, 0, 2
| 6, 5, 2, 0
|];
`

func TestTranscode(t *testing.T) {
	inst, err := Transcode(sampleRaw())
	require.NoError(t, err)
	assert.Equal(t, sampleText, inst.Text)
	assert.Equal(t, 2, inst.NumCourier)
	assert.Equal(t, 3, inst.NumItem)
	assert.Equal(t, 4, inst.DistributionPoints())
	assert.Equal(t, []int{15, 10}, inst.Capacity)
	assert.Equal(t, []int{6, 5, 2, 0}, inst.Distances[3])
}

func TestTranscodeKeepsEveryColumn(t *testing.T) {
	inst, err := Transcode(sampleRaw())
	require.NoError(t, err)
	for _, line := range strings.Split(inst.Text, "\n") {
		if !strings.HasPrefix(line, "|") || line == "|];" {
			continue
		}
		assert.Len(t, strings.Split(line, ","), 4, "row %q", line)
	}
}

func TestTranscodeToleratesExtraWhitespace(t *testing.T) {
	raw := sampleRaw()
	raw.Lines[2] = "15  10 "
	raw.Lines = append(raw.Lines, "", "  ")
	inst, err := Transcode(raw)
	require.NoError(t, err)
	assert.Equal(t, sampleText, inst.Text)
}

func TestTranscodeRoundTripsThroughParse(t *testing.T) {
	inst, err := Transcode(sampleRaw())
	require.NoError(t, err)
	back, err := Parse(inst.Text)
	require.NoError(t, err)
	assert.Equal(t, inst.NumCourier, back.NumCourier)
	assert.Equal(t, inst.NumItem, back.NumItem)
	assert.Equal(t, inst.Capacity, back.Capacity)
	assert.Equal(t, inst.ItemSize, back.ItemSize)
	assert.Equal(t, inst.Distances, back.Distances)
}

func TestTranscodeMalformed(t *testing.T) {
	cases := map[string]func(*model.RawInstance){
		"missing matrix row":  func(r *model.RawInstance) { r.Lines = r.Lines[:len(r.Lines)-1] },
		"extra matrix row":    func(r *model.RawInstance) { r.Lines = append(r.Lines, "1 1 1 1") },
		"short matrix row":    func(r *model.RawInstance) { r.Lines[5] = "3 0 4" },
		"non numeric":         func(r *model.RawInstance) { r.Lines[3] = "3 x 6" },
		"capacity count":      func(r *model.RawInstance) { r.Lines[2] = "15" },
		"size count":          func(r *model.RawInstance) { r.Lines[3] = "3 2" },
		"zero couriers":       func(r *model.RawInstance) { r.Lines[0] = "0" },
		"header only":         func(r *model.RawInstance) { r.Lines = r.Lines[:2] },
		"two values on count": func(r *model.RawInstance) { r.Lines[1] = "3 4" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			raw := sampleRaw()
			raw.Lines = append([]string(nil), raw.Lines...)
			mutate(&raw)
			_, err := Transcode(raw)
			var dfe *DataFormatError
			require.True(t, errors.As(err, &dfe), "want DataFormatError, got %v", err)
		})
	}
}

func TestParseRejectsIncompleteBlock(t *testing.T) {
	_, err := Parse(strings.Replace(sampleText, "|];", "", 1))
	var dfe *DataFormatError
	require.ErrorAs(t, err, &dfe)

	_, err = Parse("num_courier = 2;\nnum_item = 3;\n")
	require.ErrorAs(t, err, &dfe)
	assert.Contains(t, dfe.Error(), "courier_capacity")
}

func TestTranscodeFileLeavesNoOutputOnError(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "bad.dat")
	require.NoError(t, os.WriteFile(src, []byte("2\n3\n15 10\n3 2 6\n0 3 3 6\n"), 0o644))
	dst := filepath.Join(dir, "out", "Instance01.dzn")

	_, err := TranscodeFile(src, dst)
	var dfe *DataFormatError
	require.ErrorAs(t, err, &dfe)
	assert.Equal(t, "bad.dat", dfe.Source)
	_, statErr := os.Stat(dst)
	assert.True(t, os.IsNotExist(statErr))
}

func TestTranscodeDir(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "dzn")
	body := strings.Join(sampleRaw().Lines, "\n") + "\n"
	for _, name := range []string{"inst02.dat", "inst01.dat", ".hidden"} {
		require.NoError(t, os.WriteFile(filepath.Join(src, name), []byte(body), 0o644))
	}

	n, err := TranscodeDir(context.Background(), src, dst, 4, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	for _, name := range []string{"Instance01.dzn", "Instance02.dzn"} {
		data, err := os.ReadFile(filepath.Join(dst, name))
		require.NoError(t, err)
		assert.Equal(t, sampleText, string(data))
	}
	_, err = os.Stat(filepath.Join(dst, "Instance03.dzn"))
	assert.True(t, os.IsNotExist(err))
}

func TestWatchRetranscodesOnChange(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "dzn")
	body := strings.Join(sampleRaw().Lines, "\n") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(src, "inst01.dat"), []byte(body), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, src, dst, 2, 20*time.Millisecond, nil) }()

	exists := func(name string) func() bool {
		return func() bool {
			_, err := os.Stat(filepath.Join(dst, name))
			return err == nil
		}
	}
	require.Eventually(t, exists("Instance01.dzn"), 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(src, "inst02.dat"), []byte(body), 0o644))
	require.Eventually(t, exists("Instance02.dzn"), 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}
