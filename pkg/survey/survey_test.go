package survey

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

const (
	demographicsCSV = `ID,gender,minority,deprived
1,0,0,1
2,1,0,0
3,1,1,0
4,0,0,0
`
	screenTimeCSV = `ID,C_we,C_wk,G_we,G_wk,S_we,S_wk,T_we,T_wk
1,0.5,0.5,0,0,2,1.5,3,2
2,3,2,4,3,1,1,0.5,0.5
3,1,1,1,1,1,1,1,1
5,2,2,2,2,2,2,2,2
`
	wellBeingCSV = `ID,Optm,Usef,Relx
1,4,5,4
2,2,5,5
3,3,3,3
4,5,5,5
`
)

func fixtureSource() *MemorySource {
	return NewMemorySource(map[string]string{
		DemographicsDataset: demographicsCSV,
		ScreenTimeDataset:   screenTimeCSV,
		WellBeingDataset:    wellBeingCSV,
	})
}

func TestReadTable(t *testing.T) {
	tbl, err := ReadTable(strings.NewReader("\ufeffID,a,b\n7,1,2\n3,4,5\n"), "t.csv")
	require.NoError(t, err)

	assert.Equal(t, []string{"ID", "a", "b"}, tbl.Header)
	assert.Equal(t, []string{"7", "3"}, tbl.Order)
	assert.Equal(t, []string{"a", "b"}, tbl.Columns())

	v, ok := tbl.Value("3", "b")
	assert.True(t, ok)
	assert.Equal(t, "5", v)

	_, ok = tbl.Value("3", "missing")
	assert.False(t, ok)
}

func TestReadTableRejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"no id column", "a,b\n1,2\n"},
		{"duplicate id", "ID,a\n1,2\n1,3\n"},
		{"blank id", "ID,a\n ,2\n"},
		{"ragged row", "ID,a\n1,2,3\n"},
		{"duplicate column", "ID,a,a\n1,2,3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadTable(strings.NewReader(tt.input), "bad.csv")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidInput), "got %v", err)
		})
	}
}

func TestLoaderInnerJoin(t *testing.T) {
	ds, err := NewLoader(fixtureSource(), nil).Load(context.Background())
	require.NoError(t, err)

	// 4 is missing screen time and 5 is missing demographics/well-being.
	ids := make([]string, 0, ds.Len())
	for _, p := range ds.Participants {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"1", "2", "3"}, ids)

	assert.Equal(t, JoinStats{Demographics: 4, ScreenTime: 4, WellBeing: 4, Joined: 3, Distinct: 5}, ds.Stats)
	assert.Equal(t, 2, ds.Stats.Dropped())
	assert.Equal(t, []string{"Optm", "Usef", "Relx"}, ds.Indicators)
	assert.Equal(t, []string{"gender", "minority", "deprived"}, ds.Demographics)

	p := ds.Participants[1]
	assert.Equal(t, "1", p.Gender())
	assert.Equal(t, 5.0, p.ActivityTotal(Computer))
	assert.Equal(t, 7.0, p.ActivityTotal(Gaming))
	assert.Equal(t, 8.5, p.Total(WeekendFields...))

	assert.Equal(t, []float64{0.5, 3, 1}, ds.Column(ScreenTimeField{Computer, Weekend}))
	relx, err := ds.Indicator("Relx")
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 5, 3}, relx)

	_, err = ds.Indicator("Cheer")
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.Equal(t, []float64{2, 5, 5}, ds.IndicatorScores(&ds.Participants[1]))
}

func TestLoaderRejectsNonNumeric(t *testing.T) {
	tests := []struct {
		name   string
		screen string
		wb     string
	}{
		{
			name:   "non-numeric screen time",
			screen: "ID,C_we,C_wk,G_we,G_wk,S_we,S_wk,T_we,T_wk\n1,x,0,0,0,0,0,0,0\n",
			wb:     wellBeingCSV,
		},
		{
			name:   "missing indicator",
			screen: screenTimeCSV,
			wb:     "ID,Optm,Usef\n1,4,\n",
		},
		{
			name:   "nan indicator",
			screen: screenTimeCSV,
			wb:     "ID,Optm\n1,NaN\n",
		},
		{
			name:   "missing screen-time column",
			screen: "ID,C_we\n1,2\n",
			wb:     wellBeingCSV,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := NewMemorySource(map[string]string{
				DemographicsDataset: demographicsCSV,
				ScreenTimeDataset:   tt.screen,
				WellBeingDataset:    tt.wb,
			})
			_, err := NewLoader(src, nil).Load(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		DemographicsDataset: demographicsCSV,
		ScreenTimeDataset:   screenTimeCSV,
		WellBeingDataset:    wellBeingCSV,
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	src := NewDirSource(dir)
	assert.Equal(t, filepath.Join(dir, ScreenTimeDataset), src.Path(ScreenTimeDataset))

	ds, err := NewLoader(src, nil).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Len())

	fromDisk, err := Checksum(context.Background(), src)
	require.NoError(t, err)
	fromMemory, err := Checksum(context.Background(), fixtureSource())
	require.NoError(t, err)
	assert.Equal(t, fromMemory, fromDisk)

	_, err = NewDirSource(filepath.Join(dir, "missing")).Open(context.Background(), DemographicsDataset)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestChecksumChangesWithContent(t *testing.T) {
	ctx := context.Background()
	a, err := Checksum(ctx, fixtureSource())
	require.NoError(t, err)

	changed := NewMemorySource(map[string]string{
		DemographicsDataset: demographicsCSV,
		ScreenTimeDataset:   screenTimeCSV,
		WellBeingDataset:    wellBeingCSV + "9,1,1,1\n",
	})
	b, err := Checksum(ctx, changed)
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

func TestMemorySource(t *testing.T) {
	ctx := context.Background()
	mem := NewMemorySource(nil)
	var src Source = mem

	_, err := src.Open(ctx, DemographicsDataset)
	assert.Error(t, err)

	mem.Put(DemographicsDataset, demographicsCSV)
	rc, err := src.Open(ctx, DemographicsDataset)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, demographicsCSV, string(data))
}

// swappingSource replaces one dataset right after the first time it is
// opened, like a ConfigMap updated mid-run.
type swappingSource struct {
	*MemorySource
	name    string
	next    string
	swapped bool
}

func (s *swappingSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	rc, err := s.MemorySource.Open(ctx, name)
	if name == s.name && !s.swapped {
		s.swapped = true
		s.Put(name, s.next)
	}
	return rc, err
}

func TestLoaderChecksumCoversDecodedBytes(t *testing.T) {
	ctx := context.Background()

	ds, err := NewLoader(fixtureSource(), nil).Load(ctx)
	require.NoError(t, err)
	want, err := Checksum(ctx, fixtureSource())
	require.NoError(t, err)
	assert.Equal(t, want, ds.Checksum)

	src := &swappingSource{
		MemorySource: fixtureSource(),
		name:         WellBeingDataset,
		next:         strings.Replace(wellBeingCSV, "1,4,5,4", "1,1,1,1", 1),
	}
	ds, err = NewLoader(src, nil).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, ds.Checksum)
	assert.Equal(t, 4.0, ds.Participants[0].Indicators["Optm"])

	reread, err := Checksum(ctx, src)
	require.NoError(t, err)
	assert.NotEqual(t, ds.Checksum, reread)
}

func TestConfigMapSource(t *testing.T) {
	cm := &v1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "survey-data",
			Namespace: "analytics",
		},
		Data: map[string]string{
			DemographicsDataset: demographicsCSV,
			ScreenTimeDataset:   screenTimeCSV,
		},
		BinaryData: map[string][]byte{
			WellBeingDataset: []byte(wellBeingCSV),
		},
	}
	client := fake.NewSimpleClientset(cm)

	ds, err := NewLoader(NewConfigMapSource(client, "analytics", "survey-data"), nil).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Len())

	_, err = NewConfigMapSource(client, "analytics", "absent").Open(context.Background(), DemographicsDataset)
	assert.Error(t, err)

	_, err = NewConfigMapSource(client, "analytics", "survey-data").Open(context.Background(), "dataset4.csv")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	ds, err := NewLoader(fixtureSource(), nil).Load(context.Background())
	require.NoError(t, err)
	assert.NoError(t, Validate(ds, DefaultValidationOptions()))

	ds.Participants[0].Indicators["Optm"] = 7
	ds.Participants[2].ScreenTime[ScreenTimeField{TV, Weekday}] = -1

	err = Validate(ds, DefaultValidationOptions())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "Optm=7")
	assert.Contains(t, err.Error(), "negative T_wk")

	err = Validate(ds, ValidationOptions{ScaleMin: 1, ScaleMax: 5, MaxIssues: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 more issues")
}

func TestScreenTimeFieldText(t *testing.T) {
	assert.Equal(t, []string{"C_we", "C_wk", "G_we", "G_wk", "S_we", "S_wk", "T_we", "T_wk"}, columns(ScreenTimeFields))
	assert.Equal(t, []string{"C_we", "G_we", "S_we", "T_we"}, columns(WeekendFields))
	assert.Equal(t, "Video Game (Weekday)", ScreenTimeField{Gaming, Weekday}.Label())

	f, ok := ParseScreenTimeField("s_wk")
	require.True(t, ok)
	assert.Equal(t, ScreenTimeField{Smartphone, Weekday}, f)

	_, ok = ParseScreenTimeField("X_we")
	assert.False(t, ok)

	in := map[ScreenTimeField]float64{{TV, Weekend}: 2.5}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"T_we":2.5}`, string(data))

	var out map[ScreenTimeField]float64
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func columns(fields []ScreenTimeField) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Column()
	}
	return out
}
