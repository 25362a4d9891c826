package models

// FieldName is a recognized key of the listing information panel.
type FieldName string

const (
	FieldListingNumber   FieldName = "ilan_numarasi"
	FieldUpdatedAt       FieldName = "ilan_guncelleme_tarihi"
	FieldKind            FieldName = "turu"
	FieldCategory        FieldName = "kategorisi"
	FieldType            FieldName = "tipi"
	FieldNetArea         FieldName = "net_metrekare"
	FieldGrossArea       FieldName = "brut_metrekare"
	FieldRoomCount       FieldName = "oda_sayisi"
	FieldBuildingAge     FieldName = "bina_yasi"
	FieldFloor           FieldName = "bulundugu_kat"
	FieldTotalFloors     FieldName = "toplam_kat_sayisi"
	FieldHeating         FieldName = "isitma_tipi"
	FieldUsageStatus     FieldName = "kullanim_durumu"
	FieldLoanEligibility FieldName = "krediye_uygunluk"
	FieldDeedStatus      FieldName = "tapu_durumu"
	FieldInsideComplex   FieldName = "site_icerisinde"
	FieldBathroomCount   FieldName = "banyo_sayisi"
	FieldPriceStatus     FieldName = "fiyat_durumu"
)

// InfoLabels maps panel labels, as printed on the page, to field names.
// Labels outside this table are dropped during extraction.
var InfoLabels = map[string]FieldName{
	"İlan Numarası":          FieldListingNumber,
	"İlan Güncelleme Tarihi": FieldUpdatedAt,
	"Türü":                   FieldKind,
	"Kategorisi":             FieldCategory,
	"Tipi":                   FieldType,
	"Net Metrekare":          FieldNetArea,
	"Brüt Metrekare":         FieldGrossArea,
	"Oda Sayısı":             FieldRoomCount,
	"Binanın Yaşı":           FieldBuildingAge,
	"Bulunduğu Kat":          FieldFloor,
	"Binanın Kat Sayısı":     FieldTotalFloors,
	"Isıtma Tipi":            FieldHeating,
	"Kullanım Durumu":        FieldUsageStatus,
	"Krediye Uygunluk":       FieldLoanEligibility,
	"Tapu Durumu":            FieldDeedStatus,
	"Site İçerisinde":        FieldInsideComplex,
	"Banyo Sayısı":           FieldBathroomCount,
	"Fiyat Durumu":           FieldPriceStatus,
}

// Section is one tab of the feature panel.
type Section string

const (
	SectionInterior Section = "ic_ozellikler"
	SectionExterior Section = "dis_ozellikler"
	SectionLocation Section = "konum_ozellikleri"
)

// Sections lists the feature tabs in the order they are read.
var Sections = []Section{SectionInterior, SectionExterior, SectionLocation}

type Currency string

const (
	CurrencyTL  Currency = "TL"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
)

// PriceNoteNotFound is recorded when no price strategy produced an amount.
const PriceNoteNotFound = "price not found"

type PriceInfo struct {
	AmountText *string   `json:"amount_text,omitempty"`
	Amount     *int64    `json:"amount"`
	Currency   *Currency `json:"currency,omitempty"`
	Note       *string   `json:"note,omitempty"`
}

// CategoryList maps a raw category label to its ordered feature strings.
type CategoryList map[string][]string

// RawListing is everything read from one listing page, before any typing.
type RawListing struct {
	ListingURL      string                   `json:"listing_url"`
	ListingID       string                   `json:"listing_id"`
	Info            map[FieldName]string     `json:"info"`
	Price           PriceInfo                `json:"price"`
	DescriptionHTML *string                  `json:"description_html"`
	Features        map[Section]CategoryList `json:"features"`
}

// ListingRef is a discovered listing link.
type ListingRef struct {
	URL       string `json:"url"`
	ListingID string `json:"listing_id"`
}
