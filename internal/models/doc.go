// Package models defines the entities shown by the notedesk admin console.
//
// The package contains two categories of types:
//
// 1. Resource DTOs decoded from the admin API, one per list screen:
//   - [Note] : user notes with category, priority, folder, pin and archive flags
//   - [Tag] : user tags with usage counts
//   - [Folder] : user folders, optionally nested
//   - [SharedNote] : a note shared with another user
//   - [ChatSetting] : per-user chat assistant settings
//
// 2. Transport and persistence helpers:
//   - [Pagination] : the pagination envelope reported by the API
//   - [Record] : the stored form of any resource, used by the development backend
//
// Every DTO implements [Keyed] so list controllers can address single items for optimistic patches.
package models
