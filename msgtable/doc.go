// Package msgtable inventories classic (pre-manifest) Windows event message
// tables.
//
// Classic event sources register one or more message modules under
// HKLM\SYSTEM\CurrentControlSet\Services\EventLog\<log>\<source> in the
// EventMessageFile value. Each module embeds an RT_MESSAGETABLE resource that
// maps 32-bit status values to message strings. This package resolves the
// registered paths (repairing the usual registration mistakes), loads the
// modules as data files, walks their resource directory to the message table
// for the current UI language, and decodes every entry into a MessageRecord.
// A Cache makes sure each physical module is loaded and decoded once no matter
// how many sources reference it.
//
// Basic usage:
//
//	reader, err := msgtable.NewNativeReader(nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cache := msgtable.NewCache(reader)
//	res := cache.Process(msgtable.Source{
//	    Log:          "System",
//	    Name:         "Service Control Manager",
//	    MessageFiles: `%SystemRoot%\system32\services.exe`,
//	})
//	for r := range cache.Records() {
//	    fmt.Println(r.ID.Code(), r.Text)
//	}
package msgtable
