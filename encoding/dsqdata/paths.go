// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package dsqdata

// A database is four files sharing one base path: the stub itself (no
// suffix), and three binary files distinguished by suffix.
func stubPath(base string) string { return base }
func indexPath(base string) string { return base + ".dsqi" }
func metadataPath(base string) string { return base + ".dsqm" }
func sequencePath(base string) string { return base + ".dsqs" }
