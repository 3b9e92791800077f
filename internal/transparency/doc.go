// Package transparency turns errors from the plugin, theme, demo and contact
// components into something an admin can act on.
//
// Every failure is placed in one of a few categories:
//
//   - permission: the caller lacks a host capability; fatal, not retried
//   - resolution: a plugin or file identifier is unknown; the user may retry
//   - transport: network, timeout or unexpected runtime failure; retry later
//   - validation: bad form input, rejected before any side effect
//
// Components that know their category implement Categorized; everything else
// is classified by sentinel and then by message patterns.
package transparency
