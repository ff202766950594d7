package engine

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"db-fixture/internal/dialect"
	"db-fixture/internal/schema"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
)

// generatorEpoch anchors generated dates so a seed always yields the same file.
var generatorEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Generator writes fake CSV fixtures for reflected tables. Values generated for
// one table are remembered so later tables can reference them through foreign keys;
// feed tables parents first (schema.Analyze order).
type Generator struct {
	faker *gofakeit.Faker
	pool  map[string][]string // "table.column" -> generated values
}

func NewGenerator(seed int64) *Generator {
	return &Generator{faker: gofakeit.New(seed), pool: make(map[string][]string)}
}

// Generate writes a header and n rows for tbl. onRow, when set, is called after each row.
func (g *Generator) Generate(tbl *schema.Table, n int, w io.Writer, onRow func()) error {
	cw := csv.NewWriter(w)

	header := make([]string, len(tbl.Columns))
	for i, c := range tbl.Columns {
		header[i] = c.Name
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header for %s: %w", tbl.Name, err)
	}

	refs := make(map[string]*schema.ForeignKey, len(tbl.ForeignKeys))
	for _, fk := range tbl.ForeignKeys {
		refs[strings.ToUpper(fk.Column)] = fk
	}

	record := make([]string, len(tbl.Columns))
	for row := 1; row <= n; row++ {
		for i, c := range tbl.Columns {
			v := ""
			if fk, ok := refs[strings.ToUpper(c.Name)]; ok {
				v = g.pick(fk)
			}
			if v == "" {
				v = g.Value(c, row)
			}
			record[i] = v
			key := tbl.Name + "." + c.Name
			g.pool[key] = append(g.pool[key], v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row %d for %s: %w", row, tbl.Name, err)
		}
		if onRow != nil {
			onRow()
		}
	}
	cw.Flush()
	return cw.Error()
}

func (g *Generator) pick(fk *schema.ForeignKey) string {
	for key, values := range g.pool {
		if strings.EqualFold(key, fk.RefTable+"."+fk.RefColumn) && len(values) > 0 {
			return values[g.faker.Number(0, len(values)-1)]
		}
	}
	return ""
}

// Value produces the fixture text for one column of the row-th generated row.
// Key columns get values that stay unique across rows.
func (g *Generator) Value(col *schema.Column, row int) string {
	f := g.faker
	switch col.Kind {
	case dialect.KindInteger:
		if col.IsPK || col.IsUnique {
			return strconv.Itoa(row)
		}
		if col.Meaning == "yesno" {
			return strconv.Itoa(f.Number(0, 1))
		}
		return strconv.Itoa(f.Number(1, 50000))
	case dialect.KindFloat:
		return strconv.FormatFloat(math.Round(f.Float64Range(0, 1000)*1000)/1000, 'f', -1, 64)
	case dialect.KindDecimal:
		scale := int32(2)
		if m := decimalScale.FindStringSubmatch(col.RawType); m != nil {
			n, _ := strconv.Atoi(m[1])
			scale = int32(n)
		}
		return decimal.NewFromFloat(f.Price(0.99, 99.99)).StringFixed(scale)
	case dialect.KindBoolean:
		return strconv.FormatBool(f.Bool())
	case dialect.KindDate:
		return f.DateRange(generatorEpoch.AddDate(-1, 0, 0), generatorEpoch).Format("2006-01-02")
	case dialect.KindDateTime:
		return f.DateRange(generatorEpoch.AddDate(-1, 0, 0), generatorEpoch).Format("2006-01-02 15:04:05")
	case dialect.KindTime:
		return f.DateRange(generatorEpoch, generatorEpoch.Add(24*time.Hour-time.Second)).Format("15:04:05")
	case dialect.KindUUID:
		return f.UUID()
	case dialect.KindJSON:
		b, _ := json.Marshal(map[string]string{f.Word(): f.Word()})
		return string(b)
	case dialect.KindBinary:
		return f.LetterN(8)
	}

	v := g.text(col)
	if col.IsPK || col.IsUnique {
		v = fmt.Sprintf("%s-%d", v, row)
	}
	return v
}

func (g *Generator) text(col *schema.Column) string {
	f := g.faker
	switch col.Meaning {
	case "email":
		return f.Email()
	case "phone":
		return f.Phone()
	case "name":
		return f.Name()
	case "address":
		return f.Street()
	case "zipcode":
		return f.Zip()
	case "city":
		return f.City()
	case "country":
		return f.Country()
	case "url":
		return f.URL()
	case "ip":
		return f.IPv4Address()
	case "password":
		return f.Password(true, true, true, false, false, 12)
	case "title":
		return f.Sentence(3)
	case "description":
		return f.Sentence(10)
	case "yesno":
		return f.RandomString([]string{"Y", "N"})
	case "status":
		return f.RandomString([]string{"active", "inactive", "pending"})
	case "code":
		return strings.ToUpper(f.LetterN(4))
	case "latitude":
		return strconv.FormatFloat(f.Latitude(), 'f', 6, 64)
	case "longitude":
		return strconv.FormatFloat(f.Longitude(), 'f', 6, 64)
	default:
		return f.Word()
	}
}
