// Package codec converts typed values to and from the byte payloads kept in a
// vault.
//
// Two encoding generations coexist:
//
//   - GenerationLegacy writes one bespoke layout per built-in type. The first
//     byte is a type tag ('s', 'l', 'e', 'm', 't', 'b').
//   - GenerationArchive writes any Archivable value into a generic container:
//     the magic bytes 0xC5 'C' 'B' 'X' 0x02 followed by a protobuf
//     google.protobuf.Any whose type URL is the value's ArchiveType.
//
// Encoding always uses the codec's configured generation. Decoding detects the
// generation from the payload itself, so stores can move from one generation
// to the other without rewriting existing entries.
//
// Unarchive only reconstructs types named on an AllowList. A payload whose
// declared type is not allowed fails with ErrDecodeMismatch and no value is
// returned.
package codec
