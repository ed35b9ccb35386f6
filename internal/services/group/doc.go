// Package group implements sender-key group messaging: one symmetric
// chain per (sender, distribution id), published to recipients with a
// distribution message, advanced once per encrypted message and never
// rewound.
package group
