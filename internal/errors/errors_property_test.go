//go:build property

package errors

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var allTypes = []ErrorType{
	ErrorTypeConfig, ErrorTypeNoMatch, ErrorTypeNotFound, ErrorTypeStaleness,
	ErrorTypeBackend, ErrorTypeIO, ErrorTypeInternal,
}

func genAssetError() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, len(allTypes)-1),
		gen.AlphaString(),
		gen.IntRange(0, 3),
	).Map(func(vals []interface{}) error {
		var err error = &AssetError{Type: allTypes[vals[0].(int)], Code: "CODE", Message: vals[1].(string)}
		for i := 0; i < vals[2].(int); i++ {
			err = fmt.Errorf("layer %d: %w", i, err)
		}
		return err
	})
}

func TestClassificationProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(2468)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("every error is exactly one of soft or hard", prop.ForAll(
		func(err error) bool {
			return IsSoft(err) != IsHard(err)
		},
		genAssetError(),
	))

	properties.Property("wrapping keeps the classification", prop.ForAll(
		func(err error) bool {
			return IsSoft(fmt.Errorf("outer: %w", err)) == IsSoft(err) &&
				TypeOf(fmt.Errorf("outer: %w", err)) == TypeOf(err)
		},
		genAssetError(),
	))

	properties.Property("annotation never changes the type", prop.ForAll(
		func(err error, backend string) bool {
			return TypeOf(Annotate(err, backend, "/x")) == TypeOf(err)
		},
		genAssetError(),
		gen.Identifier(),
	))

	properties.TestingRun(t)
}
