package btcburn

import "fmt"

func errRecordLength(got, want int) error {
	return fmt.Errorf("btcburn: record is %d bytes, want %d", got, want)
}
