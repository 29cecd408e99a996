// Copyright 2026 The Winpipe Authors
// SPDX-License-Identifier: Apache-2.0

// Package protocol describes the Wayland interfaces winpipe speaks:
// their names, the highest version served, and for each request and
// event its argument signature, the version that introduced it, and
// whether it destroys the object.
//
// The tables are the single source of truth for opcode numbering. The
// named opcode constants (DisplaySync, SurfaceCommit, ...) index into
// Requests and Events, and a test keeps them in agreement.
//
// Only core objects and the xdg-shell toplevel path are described.
// Popups, subsurfaces, and data devices are not served.
package protocol
