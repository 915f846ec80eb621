package storage

import (
	"strconv"
	"time"

	"docstore/internal/docstore"
)

// Options carries the collaborators shared by every backend. Zero fields
// are replaced with production defaults.
type Options struct {
	Clock  docstore.Clock
	Tokens docstore.TokenGenerator
	Logger docstore.Logger
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = docstore.RealClock{}
	}
	if o.Tokens == nil {
		o.Tokens = docstore.RandomTokens{}
	}
	if o.Logger == nil {
		o.Logger = docstore.NewNopLogger()
	}
	return o
}

// newKey generates the storage key for obj at the current time.
func (o Options) newKey(obj *docstore.Object) string {
	return docstore.GenerateKey(obj.Category, obj.OwnerID, obj.OriginalName, o.Clock.Now(), o.Tokens.Token())
}

// objectMetadata is the user metadata written alongside every object.
func objectMetadata(obj *docstore.Object, now time.Time) map[string]string {
	return map[string]string{
		"userId":       strconv.FormatInt(obj.OwnerID, 10),
		"uploadDate":   now.UTC().Format(time.RFC3339),
		"originalName": obj.OriginalName,
		"fileType":     obj.Category,
	}
}
