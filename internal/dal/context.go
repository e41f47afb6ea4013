package dal

// Identifiers of the rows every installation starts with.
const (
	DefaultShopID     = "ffa32a50-e2d0-4cf3-8389-a53f8d6cd594"
	DefaultCatalogID  = "0fd8e5f3-8c50-4e1a-a4b2-6b5e8a4c0a21"
	DefaultCurrencyID = "4c8eba11-bd35-46d7-86af-bed481a6e665"
	DefaultLanguageID = "20080911-ffff-4fff-afff-ffffffffffff"
	DefaultTaxID      = "49260353-68e3-4d9f-a695-e017d7a231b9"
)

// ShopContext parameterizes every read, write and search call.
type ShopContext struct {
	ShopID     string
	CatalogIDs []string
	// RuleIDs are the active pricing rules, highest precedence first.
	RuleIDs    []string
	CurrencyID string
	LanguageID string
}

// DefaultContext returns the baseline context used for uncustomized reads and writes.
func DefaultContext() ShopContext {
	return ShopContext{
		ShopID:     DefaultShopID,
		CatalogIDs: []string{DefaultCatalogID},
		RuleIDs:    []string{},
		CurrencyID: DefaultCurrencyID,
		LanguageID: DefaultLanguageID,
	}
}

// NewShopContext builds a context and fills blank identifiers with the defaults.
func NewShopContext(shopID string, catalogIDs, ruleIDs []string, currencyID, languageID string) ShopContext {
	sc := ShopContext{
		ShopID:     shopID,
		CatalogIDs: catalogIDs,
		RuleIDs:    ruleIDs,
		CurrencyID: currencyID,
		LanguageID: languageID,
	}
	return sc.withDefaults()
}

func (sc ShopContext) withDefaults() ShopContext {
	if sc.ShopID == "" {
		sc.ShopID = DefaultShopID
	}
	if len(sc.CatalogIDs) == 0 {
		sc.CatalogIDs = []string{DefaultCatalogID}
	}
	if sc.CurrencyID == "" {
		sc.CurrencyID = DefaultCurrencyID
	}
	if sc.LanguageID == "" {
		sc.LanguageID = DefaultLanguageID
	}
	return sc
}

// languages returns the translation lookup order: the context language, then the default language.
func (sc ShopContext) languages() []string {
	sc = sc.withDefaults()
	if sc.LanguageID == DefaultLanguageID {
		return []string{sc.LanguageID}
	}
	return []string{sc.LanguageID, DefaultLanguageID}
}
