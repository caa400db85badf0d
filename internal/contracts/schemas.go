// Package contracts validates outgoing listing documents against their JSON
// schema before they reach storage, so a quietly changed upstream response
// shape fails loudly instead of corrupting the index.
package contracts

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/JoeBashe/stl-scraper/internal/core/domain"
)

//go:embed listing_schema.json
var listingSchemaJSON string

var listingSchema *jsonschema.Schema

func init() {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true

	const name = "listing/v1.json"
	if err := compiler.AddResource(name, strings.NewReader(listingSchemaJSON)); err != nil {
		panic(fmt.Sprintf("contracts: failed to add listing schema: %v", err))
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("contracts: failed to compile listing schema: %v", err))
	}
	listingSchema = schema
}

// ValidateListing checks a listing document against the storage contract.
func ValidateListing(listing domain.Listing) error {
	raw, err := json.Marshal(listing)
	if err != nil {
		return fmt.Errorf("contracts: failed to serialize listing %s: %w", listing.ID, err)
	}

	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("contracts: listing %s is not valid JSON: %w", listing.ID, err)
	}

	if err := listingSchema.Validate(v); err != nil {
		return fmt.Errorf("contracts: listing %s failed schema validation: %w", listing.ID, err)
	}
	return nil
}
