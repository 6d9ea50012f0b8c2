// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package findings renders finding markdown with cross-tab navigation links.
//
// Rendering is two-pass. Annotate turns markdown into segments, each either
// markdown or a link resolved through a closed table of targets; the
// Renderer then maps markdown segments through glamour and links to numbered
// markers that can be followed. Links are written by the server as
// [[target]] or [[target|display text]]; AutoDetect adds the same form around
// known domain phrases.
package findings
