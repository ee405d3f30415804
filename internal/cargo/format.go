package cargo

import (
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/chachabrian/hacktruck-backend/internal/models"
)

const (
	unknownValue  = "Tidak Diketahui"
	noneValue     = "Tidak ada"
	contactPrice  = "Hubungi untuk harga"
	noDescription = "Tidak ada deskripsi"
)

var rupiahPrinter = message.NewPrinter(language.Indonesian)

// FormatRupiah renders a price with Indonesian thousands separators, for
// example 2500000 becomes "Rp2.500.000". A zero price means the driver wants
// to be contacted.
func FormatRupiah(price int64) string {
	if price <= 0 {
		return contactPrice
	}
	return "Rp" + rupiahPrinter.Sprintf("%d", price)
}

func formatRating(r *float64) string {
	if r == nil {
		return unknownValue
	}
	return strconv.FormatFloat(*r, 'f', -1, 64)
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

// describeListing renders one numbered candidate block for the prompt.
func describeListing(i int, l models.Listing) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(i) + ". Nama: " + orDefault(l.CompanyName, unknownValue) + "\n")
	b.WriteString("Deskripsi: " + orDefault(l.Description, noDescription) + "\n")
	b.WriteString("Origin: " + orDefault(l.Origin, unknownValue) + "\n")
	b.WriteString("Destination: " + orDefault(l.Destination, unknownValue) + "\n")
	b.WriteString("Jenis Truk: " + orDefault(string(l.TruckType), unknownValue) + "\n")
	b.WriteString("Harga: " + FormatRupiah(l.Price) + "\n")
	b.WriteString("Estimasi Waktu: " + orDefault(l.EstimasiWaktu, unknownValue) + "\n")
	b.WriteString("Rating: " + formatRating(l.Rating) + "\n")
	b.WriteString("Layanan Tambahan: " + orDefault(l.LayananTambahan, noneValue) + "\n")
	b.WriteString("Website: " + orDefault(l.Website, noneValue) + "\n")
	b.WriteString("Kontak: " + orDefault(l.Kontak, noneValue) + "\n")
	return b.String()
}
