package hosted

import (
	"golang.org/x/sys/unix"

	"github.com/lupi-os/lupi/internal/constants"
	"github.com/lupi-os/lupi/internal/kerr"
)

// MappedPage is a shared page backed by an anonymous mmap region
// rather than a plain Go slice, so that two independently-constructed
// IPC page headers can genuinely alias the same bytes the way two
// processes' page tables point at the same physical page in spec.md
// §4.2's SharePage. Grounded on the teacher's golang.org/x/sys/unix
// usage for direct OS-level control, generalized from CPU-affinity
// syscalls to mmap.
type MappedPage struct {
	data []byte
}

// NewMappedPage allocates one PageSize-aligned anonymous mapping.
func NewMappedPage() (*MappedPage, error) {
	data, err := unix.Mmap(-1, 0, constants.PageSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, kerr.Wrap("NewSharedPage", err)
	}
	return &MappedPage{data: data}, nil
}

// Bytes returns the mapped region.
func (p *MappedPage) Bytes() []byte { return p.data }

// Close unmaps the region.
func (p *MappedPage) Close() error {
	return unix.Munmap(p.data)
}
