// Package gadget manages the inventory of field gadgets and their status
// lifecycle.
//
// A gadget starts Available. DELETE-style decommissioning moves it to
// Decommissioned and stamps decommissionedAt; self-destruct schedules a
// move to Destroyed after a delay. Ordinary status updates can never
// reach either terminal status and are refused once a gadget is in one.
//
// Codenames come from an Allocator that draws without replacement from a
// fixed pool and refills it when exhausted, so names repeat only across
// refills.
//
// Every successful mutation is reported to a Notifier as an Event.
// Delivery failures are logged and never fail the operation.
package gadget
