package identity

import (
	"net/http"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Unix(1_700_000_000, 0)

func fixedStore(jar *Jar, draws ...int64) *Store {
	i := 0
	return NewStore(jar,
		WithClock(func() time.Time { return fixedNow }),
		WithRand(func(int64) int64 {
			v := draws[i]
			if i < len(draws)-1 {
				i++
			}
			return v
		}),
	)
}

func TestDurableID_RegeneratesInvalid(t *testing.T) {
	tests := []struct {
		name   string
		stored *string
	}{
		{name: "missing"},
		{name: "empty", stored: ptr("")},
		{name: "literal undefined", stored: ptr("undefined")},
		{name: "too short", stored: ptr("123456789")},
		{name: "numeric zero", stored: ptr("0000000000")},
		{name: "blank", stored: ptr("          ")},
		{name: "hex zero", stored: ptr("0x00000000")},
		{name: "exponent zero", stored: ptr("0000000e10")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jar := NewJar()
			if tt.stored != nil {
				jar.Set(DurableCookie, *tt.stored, 0)
			}
			store := fixedStore(jar, 12345678)

			id := store.DurableID()
			// 1_700_000_000 * 12345678 = 20987652600000000
			assert.Equal(t, "2098765260", id)
			assert.Equal(t, id, jar.Get(DurableCookie))

			exp, ok := jar.Expiry(DurableCookie)
			require.True(t, ok)
			assert.WithinDuration(t, time.Now().Add(DurableTTL), exp, time.Minute)
		})
	}
}

func TestDurableID_KeepsValid(t *testing.T) {
	for _, stored := range []string{"1234567890", "98765432101234", "abcdefghijk"} {
		jar := NewJar()
		jar.Set(DurableCookie, stored, 0)
		store := fixedStore(jar, 1)

		assert.Equal(t, stored, store.DurableID())
		assert.Equal(t, stored, jar.Get(DurableCookie))
	}
}

func TestDurableID_RedrawsShortIDs(t *testing.T) {
	jar := NewJar()
	store := fixedStore(jar, 0, 0, 12345678)
	assert.Equal(t, "2098765260", store.DurableID())
}

func TestDurableID_EpochClock(t *testing.T) {
	jar := NewJar()
	store := NewStore(jar, WithClock(func() time.Time { return time.Unix(0, 0) }))

	id := store.DurableID()
	assert.Len(t, id, 10)
	assert.True(t, ValidDurableID(id))
	assert.Equal(t, id, jar.Get(DurableCookie))
}

func TestDurableID_ZeroDrawsFallBack(t *testing.T) {
	jar := NewJar()
	store := fixedStore(jar, 0)
	assert.Equal(t, "1000000000", store.DurableID())
}

func TestValidDurableID_NumericZeroForms(t *testing.T) {
	for _, id := range []string{"0000000000", " 000000000 ", "0x00000000", "0b00000000", "0O00000000", "0.00000000"} {
		assert.False(t, ValidDurableID(id), id)
	}
	for _, id := range []string{"0x0000000g", "0000000001", "0b00000010", "1234567890"} {
		assert.True(t, ValidDurableID(id), id)
	}
}

func TestDurableID_RealRandomSource(t *testing.T) {
	jar := NewJar()
	id := NewStore(jar).DurableID()
	assert.Len(t, id, 10)
	assert.True(t, ValidDurableID(id))
	assert.Equal(t, id, NewStore(jar).DurableID())
}

func TestAnalyticsID(t *testing.T) {
	jar := FromHTTP([]*http.Cookie{{Name: "_ga", Value: "GA1.2.111.222"}, {Name: "other", Value: "x"}})
	store := NewStore(jar)
	assert.Equal(t, "GA1.2.111.222", store.AnalyticsID())

	assert.Equal(t, "", NewStore(NewJar()).AnalyticsID())
}

func TestWriteSnapshot(t *testing.T) {
	jar := NewJar()
	store := NewStore(jar)
	store.WriteSnapshot(url.Values{"domoid": {"1234567890"}, "email": {"a@acme.com"}})

	raw := jar.Get(SnapshotCookie)
	parsed, err := url.ParseQuery(raw)
	require.NoError(t, err)
	assert.Equal(t, "a@acme.com", parsed.Get("email"))

	exp, ok := jar.Expiry(SnapshotCookie)
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(SnapshotTTL), exp, time.Minute)
}

func TestJar_Expiry(t *testing.T) {
	jar := NewJar()
	now := fixedNow
	jar.now = func() time.Time { return now }
	jar.Set("short", "v", time.Hour)
	assert.Equal(t, "v", jar.Get("short"))

	now = now.Add(2 * time.Hour)
	assert.Equal(t, "", jar.Get("short"))
}

func TestJar_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")

	empty, err := LoadJar(path)
	require.NoError(t, err)
	assert.Equal(t, "", empty.Get("did"))

	jar := NewJar()
	jar.Set("did", "1234567890", DurableTTL)
	require.NoError(t, jar.Save(path))

	loaded, err := LoadJar(path)
	require.NoError(t, err)
	assert.Equal(t, "1234567890", loaded.Get("did"))
}

func ptr(s string) *string { return &s }
