// Package desk implements the operator's actions on conversations.
//
// Every action updates the state.Store first, so the operator sees the effect
// at once. Network confirmation happens afterwards in a goroutine and never
// rolls the local change back; a failed delivery only leaves a send error on
// the message.
//
// Sending picks a route from the conversation:
//
//   - external (UserID carries the platform prefix): the message goes out
//     through the backend's messenger endpoint and a refresh is requested
//     shortly after so the backend copy replaces the local one.
//   - local with automation on: the text is asked to the assistant in the
//     current session and the reply is appended as a bot message.
//   - local in manual mode: the message is only kept locally.
//
// Editing and deleting messages is allowed in manual mode only, and never
// for customer (user) messages.
package desk
