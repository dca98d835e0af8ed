// Package domain holds the value types shared by the backends, the dialogue
// engine and the transaction orchestrator.
package domain

import (
	"strings"
	"time"
)

// StockItem is a read copy of one inventory row owned by the backend.
type StockItem struct {
	ID        string  `json:"id" yaml:"id"`
	Model     string  `json:"model" yaml:"model"`
	Color     string  `json:"color,omitempty" yaml:"color"`
	Storage   string  `json:"storage,omitempty" yaml:"storage"`
	Condition string  `json:"condition,omitempty" yaml:"condition"`
	Price     float64 `json:"price" yaml:"price"`
	Quantity  int     `json:"quantity" yaml:"quantity"`
	Reserved  int     `json:"reserved" yaml:"reserved"`
}

// Available reports whether at least one unit can still be reserved.
func (s StockItem) Available() bool {
	return s.Quantity > 0
}

// Label is the short human name used in replies ("iPhone 11 128GB negro").
func (s StockItem) Label() string {
	parts := []string{s.Model}
	if s.Storage != "" {
		parts = append(parts, s.Storage)
	}
	if s.Color != "" {
		parts = append(parts, s.Color)
	}
	return strings.Join(parts, " ")
}

// StockFilter narrows a stock listing. The zero value lists everything.
type StockFilter struct {
	Model    string  `json:"model,omitempty"`
	Storage  string  `json:"storage,omitempty"`
	Color    string  `json:"color,omitempty"`
	MaxPrice float64 `json:"max_price,omitempty"`
}

// IsZero reports whether the filter has no constraints.
func (f StockFilter) IsZero() bool {
	return f == StockFilter{}
}

// Matches applies the filter to an item. Text fields match case-insensitively
// as substrings so "iphone 11" finds "iPhone 11 Pro".
func (f StockFilter) Matches(item StockItem) bool {
	if f.Model != "" && !containsFold(item.Model, f.Model) {
		return false
	}
	if f.Storage != "" && !containsFold(item.Storage, f.Storage) {
		return false
	}
	if f.Color != "" && !containsFold(item.Color, f.Color) {
		return false
	}
	if f.MaxPrice > 0 && item.Price > f.MaxPrice {
		return false
	}
	return true
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(strings.TrimSpace(needle)))
}

// StoreInfo is one entry of the store directory.
type StoreInfo struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Address string `json:"address" yaml:"address"`
	Hours   string `json:"hours" yaml:"hours"`
}

// BusinessInfo is the tenant metadata used to answer policy questions.
type BusinessInfo struct {
	Name           string `json:"name" yaml:"name"`
	Hours          string `json:"hours" yaml:"hours"`
	Shipping       string `json:"shipping" yaml:"shipping"`
	Warranty       string `json:"warranty" yaml:"warranty"`
	Financing      string `json:"financing" yaml:"financing"`
	TransferAlias  string `json:"transfer_alias" yaml:"transfer_alias"`
	TransferCBU    string `json:"transfer_cbu" yaml:"transfer_cbu"`
	TransferHolder string `json:"transfer_holder" yaml:"transfer_holder"`
}

// Stats is the daily summary served to administrators.
type Stats struct {
	Date         string  `json:"date"`
	SalesCount   int     `json:"sales_count"`
	Revenue      float64 `json:"revenue"`
	Appointments int     `json:"appointments"`
	StockUnits   int     `json:"stock_units"`
	Clients      int     `json:"clients"`
}

// Client is a customer record kept by the backend.
type Client struct {
	ID          string    `json:"id"`
	Phone       string    `json:"phone"`
	Name        string    `json:"name"`
	Purchases   int       `json:"purchases"`
	LastProduct string    `json:"last_product,omitempty"`
	LastSeen    time.Time `json:"last_seen"`
}

// ClientInput identifies a customer for find-or-create.
type ClientInput struct {
	Phone string
	Name  string
}
