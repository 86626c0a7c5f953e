package record

// Packet iterates over the records of one flushed batch.
//
//	packet := record.NewPacket(batch, layout)
//	for packet.Next() {
//		process(packet.Record())
//	}
//
//	if err := packet.Err(); err != nil { ... }
type Packet struct {
	batch    []byte
	layout   Layout
	position int
	current  []byte
	count    int
	err      error
}

// NewPacket creates an iterator over batch framed with layout.
func NewPacket(batch []byte, layout Layout) *Packet {
	return &Packet{
		batch:  batch,
		layout: layout,
	}
}

// Next advances to the next record. It returns false at the end of the batch or when a
// frame cannot be read, in which case Err reports why.
func (p *Packet) Next() bool {
	if p.err != nil || p.position >= len(p.batch) {
		p.current = nil

		return false
	}

	size, err := p.layout.Frame(p.batch, p.position)
	if err != nil {
		p.err = err
		p.current = nil

		return false
	}

	if size == 0 {
		p.err = ErrInvalidLayout
		p.current = nil

		return false
	}

	p.current = p.batch[p.position : p.position+size]
	p.position += size
	p.count++

	return true
}

// Record returns the current record. It aliases the batch storage.
func (p *Packet) Record() []byte {
	return p.current
}

// Count returns how many records have been visited.
func (p *Packet) Count() int {
	return p.count
}

// Err returns the framing error that stopped iteration, if any.
func (p *Packet) Err() error {
	return p.err
}
