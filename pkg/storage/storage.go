package storage

import "strings"

// IpfsPrefix is the URI scheme prefix recognized for IPFS content.
const IpfsPrefix = "ipfs://"

// Link joins a gateway prefix and a content id into a retrieval URL. Ids are
// used verbatim apart from a leading ipfs:// scheme: Arweave ids are base64url
// and may contain '-' and '_'.
func Link(gateway, id string) string {
	if gateway != "" && !strings.HasSuffix(gateway, "/") {
		gateway += "/"
	}
	return gateway + strings.TrimPrefix(id, IpfsPrefix)
}
