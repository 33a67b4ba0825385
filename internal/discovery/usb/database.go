// 📁 internal/discovery/usb/database.go - USB Board Database
package usb

import (
	"strings"
)

// BoardDatabase contains known USB serial bridges and controller boards
type BoardDatabase struct {
	vendors map[string]*VendorInfo
}

// VendorInfo contains vendor-specific information
type VendorInfo struct {
	Name     string
	products map[string]*ProductInfo
}

// ProductInfo describes one VID:PID pair
type ProductInfo struct {
	Model string
	// Native is set for boards whose MCU speaks USB directly instead of
	// through a USB-UART bridge.
	Native bool
}

// NewBoardDatabase creates and initializes the board database
func NewBoardDatabase() *BoardDatabase {
	db := &BoardDatabase{
		vendors: make(map[string]*VendorInfo),
	}
	db.initializeDatabase()
	return db
}

// initializeDatabase populates the known boards
func (db *BoardDatabase) initializeDatabase() {
	db.AddVendor("2341", &VendorInfo{Name: "Arduino"})
	db.AddProduct("2341", "0010", &ProductInfo{Model: "Mega 2560"})
	db.AddProduct("2341", "0042", &ProductInfo{Model: "Mega 2560 R3"})
	db.AddProduct("2341", "0001", &ProductInfo{Model: "Uno"})
	db.AddProduct("2341", "0043", &ProductInfo{Model: "Uno R3"})

	db.AddVendor("1A86", &VendorInfo{Name: "QinHeng Electronics"})
	db.AddProduct("1A86", "7523", &ProductInfo{Model: "CH340 serial converter"})

	db.AddVendor("0403", &VendorInfo{Name: "FTDI"})
	db.AddProduct("0403", "6001", &ProductInfo{Model: "FT232R serial converter"})
	db.AddProduct("0403", "6015", &ProductInfo{Model: "FT231X serial converter"})

	db.AddVendor("10C4", &VendorInfo{Name: "Silicon Labs"})
	db.AddProduct("10C4", "EA60", &ProductInfo{Model: "CP210x serial converter"})

	db.AddVendor("0483", &VendorInfo{Name: "STMicroelectronics"})
	db.AddProduct("0483", "5740", &ProductInfo{Model: "Virtual COM Port", Native: true})

	db.AddVendor("2C99", &VendorInfo{Name: "Prusa Research"})
	db.AddProduct("2C99", "0002", &ProductInfo{Model: "Original Prusa i3 MK3", Native: true})

	db.AddVendor("1D50", &VendorInfo{Name: "OpenMoko"})
	db.AddProduct("1D50", "6029", &ProductInfo{Model: "Marlin USB device", Native: true})
	db.AddProduct("1D50", "6015", &ProductInfo{Model: "Smoothieboard", Native: true})
}

// IsKnownVendor checks if a vendor ID is in the database
func (db *BoardDatabase) IsKnownVendor(vendorID string) bool {
	_, exists := db.vendors[normalizeID(vendorID)]
	return exists
}

// GetVendorInfo retrieves vendor information
func (db *BoardDatabase) GetVendorInfo(vendorID string) *VendorInfo {
	return db.vendors[normalizeID(vendorID)]
}

// GetProductInfo retrieves product information from vendor
func (vi *VendorInfo) GetProductInfo(productID string) *ProductInfo {
	return vi.products[normalizeID(productID)]
}

// Describe returns a human readable board name, or "" when the vendor is unknown.
func (db *BoardDatabase) Describe(vendorID, productID string) string {
	vendor := db.GetVendorInfo(vendorID)
	if vendor == nil {
		return ""
	}
	if product := vendor.GetProductInfo(productID); product != nil {
		return vendor.Name + " " + product.Model
	}
	return vendor.Name
}

// GetTotalProductCount returns total number of known products
func (db *BoardDatabase) GetTotalProductCount() int {
	total := 0
	for _, vendor := range db.vendors {
		total += len(vendor.products)
	}
	return total
}

// AddVendor adds a new vendor to the database
func (db *BoardDatabase) AddVendor(vendorID string, info *VendorInfo) {
	if info.products == nil {
		info.products = make(map[string]*ProductInfo)
	}
	db.vendors[normalizeID(vendorID)] = info
}

// AddProduct adds a new product to an existing vendor
func (db *BoardDatabase) AddProduct(vendorID, productID string, info *ProductInfo) {
	if vendor, exists := db.vendors[normalizeID(vendorID)]; exists {
		vendor.products[normalizeID(productID)] = info
	}
}

// normalizeID upper-cases a hex id and strips an optional 0x prefix.
func normalizeID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) > 2 && (id[:2] == "0x" || id[:2] == "0X") {
		id = id[2:]
	}
	return strings.ToUpper(id)
}
