/*
Package chunker implements Content Defined Chunking (CDC) of byte streams.

A stream is cut into variable-sized chunks whose boundaries depend on the
content itself, computed with a rolling Rabin fingerprint over a random
irreducible polynomial in GF(2)[X]. Because boundaries are content-derived,
a local insertion or deletion only perturbs the chunks near the edit, which
makes this the foundational primitive of deduplicating backup and storage
systems.

An introduction to Rabin fingerprints and their use for chunking can be
found in the following articles:

Michael O. Rabin (1981): "Fingerprinting by Random Polynomials"
http://www.xmailserver.org/rabin.pdf

Ross N. Williams (1993): "A Painless Guide to CRC Error Detection Algorithms"
http://www.zlib.net/crc_v3.txt

Andrei Z. Broder (1993): "Some Applications of Rabin's Fingerprinting Method"
http://www.xmailserver.org/rabin_apps.pdf
*/
package chunker
