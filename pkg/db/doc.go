// Package db holds the all-link databases: the modem's flat record
// list and the per-device memory-mapped record table, the handlers that
// download and modify them over the wire, and JSON persistence so a
// restart does not force a re-download.
//
// Devices come in two generations. I2 and newer devices answer a single
// extended request by streaming their whole database; original I1
// devices only expose peek commands, so their database is read one byte
// at a time. The scan managers hide that difference.
package db
