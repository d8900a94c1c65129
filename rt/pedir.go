package rt

import "fmt"

// PERecord maps one logical processing element to its physical worker and
// the base offset of its region within the shared arena. Records are
// immutable after init.
type PERecord struct {
	Logical  int   // logical PE id, dense from 0
	Physical int   // worker index executing this PE (identity mapping today)
	Base     int64 // byte offset of the PE's region in the arena
}

// Directory is the static logical-PE -> region mapping built at Init.
// It is read-only for the lifetime of a run and safe for concurrent use.
type Directory struct {
	records    []PERecord
	regionSize int64
}

func newDirectory(pes int, regionSize int64) *Directory {
	d := &Directory{
		records:    make([]PERecord, pes),
		regionSize: regionSize,
	}
	for i := range d.records {
		d.records[i] = PERecord{
			Logical:  i,
			Physical: i,
			Base:     int64(i) * regionSize,
		}
	}
	return d
}

// NumPEs returns the number of configured processing elements.
func (d *Directory) NumPEs() int {
	return len(d.records)
}

// Lookup returns the record for a logical PE id.
func (d *Directory) Lookup(pe int) (PERecord, error) {
	if pe < 0 || pe >= len(d.records) {
		return PERecord{}, fmt.Errorf("%w: %d (have %d)", ErrUnknownPE, pe, len(d.records))
	}
	return d.records[pe], nil
}

// Translate maps a region-local offset on a logical PE to a physical offset
// in the shared arena. The offset must already be bounds-checked against the
// owning handle; Translate only validates the PE id and region span.
func (d *Directory) Translate(pe int, offset int64) (int64, error) {
	rec, err := d.Lookup(pe)
	if err != nil {
		return 0, err
	}
	if offset < 0 || offset > d.regionSize {
		return 0, fmt.Errorf("%w: offset %d outside region of %d bytes",
			ErrOutOfBounds, offset, d.regionSize)
	}
	return rec.Base + offset, nil
}
