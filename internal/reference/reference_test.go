package reference

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dvloznov/gmail-finance-sync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSource_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reference.yaml")
	content := `categories:
  - Comida
  - name: Transporte
    subcategories: [Taxi, Bus]
accounts: [Visa, Mastercard]
currencies: [COP]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	ref, err := FileSource{Path: path}.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"Comida", "Transporte"}, ref.CategoryNames())
	assert.Equal(t, []string{"Taxi", "Bus"}, ref.Categories[1].Subcategories)
	assert.Equal(t, []string{"Visa", "Mastercard"}, ref.Accounts)
	assert.Equal(t, []string{"COP"}, ref.Currencies)
}

func TestFileSource_Errors(t *testing.T) {
	_, err := FileSource{Path: filepath.Join(t.TempDir(), "missing.yaml")}.Load(context.Background())
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("categories: {broken"), 0o600))
	_, err = FileSource{Path: path}.Load(context.Background())
	assert.Error(t, err)
}

type readerFunc func(ctx context.Context, id string) (domain.ReferenceConfig, error)

func (f readerFunc) GetReferenceConfig(ctx context.Context, id string) (domain.ReferenceConfig, error) {
	return f(ctx, id)
}

func TestStoreSource_Load(t *testing.T) {
	var gotID string
	src := StoreSource{
		SettingsID: "default",
		Reader: readerFunc(func(ctx context.Context, id string) (domain.ReferenceConfig, error) {
			gotID = id
			return domain.ReferenceConfig{Accounts: []string{"Visa"}}, nil
		}),
	}

	ref, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "default", gotID)
	assert.Equal(t, []string{"Visa"}, ref.Accounts)

	src.Reader = readerFunc(func(ctx context.Context, id string) (domain.ReferenceConfig, error) {
		return domain.ReferenceConfig{}, errors.New("boom")
	})
	_, err = src.Load(context.Background())
	assert.Error(t, err)
}
